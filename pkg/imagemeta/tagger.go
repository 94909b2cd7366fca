package imagemeta

import (
	"bytes"
	"fmt"
	"time"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"
)

const (
	exifDateFormat = "2006:01:02 15:04:05"
	iptcDateFormat = "2006-01-02 15:04:05"
)

// Metadata describes the post a screenshot was taken of.
type Metadata struct {
	AuthorName   string
	AuthorHandle string
	Caption      string
	SourceURL    string
	Posted       time.Time
}

// Tagger rewrites JPEG metadata segments. All dates are written in one
// fixed zone so photos sort consistently on the frame no matter where the
// archiver runs.
type Tagger struct {
	loc *time.Location
	now func() time.Time
}

// NewTagger creates a tagger that formats dates in loc.
func NewTagger(loc *time.Location) *Tagger {
	return &Tagger{loc: loc, now: time.Now}
}

// Tag returns a copy of jpegData with EXIF and IPTC segments describing
// meta. The compressed image data passes through untouched.
func (t *Tagger) Tag(jpegData []byte, meta Metadata) ([]byte, error) {
	jmp := jpegstructure.NewJpegMediaParser()
	intfc, err := jmp.ParseBytes(jpegData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JPEG: %w", err)
	}
	sl := intfc.(*jpegstructure.SegmentList)

	rootIb, err := t.buildExif(meta)
	if err != nil {
		return nil, err
	}
	if err := sl.SetExif(rootIb); err != nil {
		return nil, fmt.Errorf("failed to set EXIF segment: %w", err)
	}

	app13 := &jpegstructure.Segment{
		MarkerId: 0xED,
		Data:     encodeApp13(t.buildIPTC(meta)),
	}
	segments := spliceApp13(sl.Segments(), app13)

	out := new(bytes.Buffer)
	if err := jpegstructure.NewSegmentList(segments).Write(out); err != nil {
		return nil, fmt.Errorf("failed to write JPEG: %w", err)
	}

	return out.Bytes(), nil
}

// buildExif writes authorship and dates into the root and Exif IFDs. The
// post's publish date goes in DateTime and DateTimeOriginal; the archival
// time goes in DateTimeDigitized.
func (t *Tagger) buildExif(meta Metadata) (*exif.IfdBuilder, error) {
	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		return nil, fmt.Errorf("failed to build IFD mapping: %w", err)
	}
	ti := exif.NewTagIndex()
	rootIb := exif.NewIfdBuilder(im, ti, exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder)

	posted := meta.Posted.In(t.loc).Format(exifDateFormat)
	artist := fmt.Sprintf("%s (%s)", meta.AuthorName, meta.AuthorHandle)

	if err := rootIb.SetStandardWithName("DateTime", posted); err != nil {
		return nil, fmt.Errorf("failed to set DateTime: %w", err)
	}
	if err := rootIb.SetStandardWithName("Artist", artist); err != nil {
		return nil, fmt.Errorf("failed to set Artist: %w", err)
	}

	exifIb, err := exif.GetOrCreateIbFromRootIb(rootIb, "IFD/Exif")
	if err != nil {
		return nil, fmt.Errorf("failed to create Exif IFD: %w", err)
	}
	if err := exifIb.SetStandardWithName("DateTimeOriginal", posted); err != nil {
		return nil, fmt.Errorf("failed to set DateTimeOriginal: %w", err)
	}
	digitized := t.now().In(t.loc).Format(exifDateFormat)
	if err := exifIb.SetStandardWithName("DateTimeDigitized", digitized); err != nil {
		return nil, fmt.Errorf("failed to set DateTimeDigitized: %w", err)
	}

	return rootIb, nil
}

// buildIPTC encodes the record-2 datasets, narrowed to Latin-1.
func (t *Tagger) buildIPTC(meta Metadata) []byte {
	return encodeIIM([]iptcRecord{
		{datasetByline, latin1(meta.AuthorName)},
		{datasetBylineTitle, latin1(meta.AuthorHandle)},
		{datasetCaption, latin1(meta.Caption)},
		{datasetDateCreated, []byte(meta.Posted.In(t.loc).Format(iptcDateFormat))},
		{datasetSource, latin1(meta.SourceURL)},
	})
}

// spliceApp13 drops any existing APP13 segment and inserts the replacement
// after the marker segments at the head of the file, before image data.
func spliceApp13(segments []*jpegstructure.Segment, app13 *jpegstructure.Segment) []*jpegstructure.Segment {
	out := make([]*jpegstructure.Segment, 0, len(segments)+1)
	inserted := false

	for _, s := range segments {
		if s.MarkerId == 0xED {
			continue
		}
		// SOI is 0xD8; APPn markers are 0xE0 through 0xEF.
		isHead := s.MarkerId == 0xD8 || (s.MarkerId >= 0xE0 && s.MarkerId <= 0xEF)
		if !inserted && !isHead {
			out = append(out, app13)
			inserted = true
		}
		out = append(out, s)
	}
	if !inserted {
		out = append(out, app13)
	}

	return out
}
