package imagemeta

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
	"time"

	exif "github.com/dsoprea/go-exif/v3"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeJPEG(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 32), G: uint8(y * 32), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}))
	return buf.Bytes()
}

func testTagger(t *testing.T) *Tagger {
	t.Helper()

	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	tg := NewTagger(loc)
	tg.now = func() time.Time {
		return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	}
	return tg
}

func testMetadata() Metadata {
	return Metadata{
		AuthorName:   "Ada Lovelace",
		AuthorHandle: "ada.example.com",
		Caption:      "First program 🎉 done",
		SourceURL:    "https://example.com/posts/1",
		Posted:       time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
	}
}

func TestLatin1DropsUnmappableRunes(t *testing.T) {
	tests := []struct {
		in   string
		want []byte
	}{
		{"plain ascii", []byte("plain ascii")},
		{"café", []byte{'c', 'a', 'f', 0xE9}},
		{"done 🎉 yay", []byte("done  yay")},
		{"日本語", []byte{}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, latin1(tt.in), "input %q", tt.in)
	}
}

func TestEncodeIIM(t *testing.T) {
	iim := encodeIIM([]iptcRecord{
		{datasetByline, []byte("Ada")},
		{datasetCaption, nil}, // empty values are skipped
	})

	// Record version dataset leads: 1C 02 00, length 2, value 00 02.
	assert.Equal(t, []byte{0x1C, 0x02, 0x00, 0x00, 0x02, 0x00, 0x02}, iim[:7])
	// Byline dataset follows.
	assert.Equal(t, []byte{0x1C, 0x02, 0x50, 0x00, 0x03, 'A', 'd', 'a'}, iim[7:])
}

func TestEncodeApp13Envelope(t *testing.T) {
	payload := encodeApp13([]byte{0x01, 0x02, 0x03})

	assert.True(t, bytes.HasPrefix(payload, []byte("Photoshop 3.0\x00")))
	assert.Equal(t, []byte("8BIM"), payload[14:18])
	assert.Equal(t, []byte{0x04, 0x04}, payload[18:20])
	// Odd-length resource data gets a pad byte.
	assert.Equal(t, byte(0x00), payload[len(payload)-1])
}

func TestTagWritesExif(t *testing.T) {
	tagged, err := testTagger(t).Tag(makeJPEG(t), testMetadata())
	require.NoError(t, err)

	rawExif, err := exif.SearchAndExtractExif(tagged)
	require.NoError(t, err)

	tags, _, err := exif.GetFlatExifData(rawExif, nil)
	require.NoError(t, err)

	values := map[string]string{}
	for _, tag := range tags {
		if s, ok := tag.Value.(string); ok {
			values[tag.TagName] = s
		}
	}

	// 2024-03-15 10:30 UTC is 03:30 in Los Angeles.
	assert.Equal(t, "2024:03:15 03:30:00", values["DateTime"])
	assert.Equal(t, "2024:03:15 03:30:00", values["DateTimeOriginal"])
	assert.Equal(t, "2024:06:01 05:00:00", values["DateTimeDigitized"])
	assert.Equal(t, "Ada Lovelace (ada.example.com)", values["Artist"])
}

func TestTagWritesIPTCSegment(t *testing.T) {
	tagged, err := testTagger(t).Tag(makeJPEG(t), testMetadata())
	require.NoError(t, err)

	intfc, err := jpegstructure.NewJpegMediaParser().ParseBytes(tagged)
	require.NoError(t, err)
	sl := intfc.(*jpegstructure.SegmentList)

	var app13 *jpegstructure.Segment
	for _, s := range sl.Segments() {
		if s.MarkerId == 0xED {
			app13 = s
			break
		}
	}
	require.NotNil(t, app13, "expected an APP13 segment")

	assert.Contains(t, string(app13.Data), "Ada Lovelace")
	assert.Contains(t, string(app13.Data), "ada.example.com")
	assert.Contains(t, string(app13.Data), "https://example.com/posts/1")
	assert.Contains(t, string(app13.Data), "2024-03-15 03:30:00")
	// The emoji in the caption does not survive the Latin-1 narrowing.
	assert.Contains(t, string(app13.Data), "First program  done")
}

func TestTagPreservesImageData(t *testing.T) {
	original := makeJPEG(t)
	tagged, err := testTagger(t).Tag(original, testMetadata())
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(tagged))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 8), img.Bounds())
}

func TestTagIsIdempotentOnSegments(t *testing.T) {
	tg := testTagger(t)
	once, err := tg.Tag(makeJPEG(t), testMetadata())
	require.NoError(t, err)

	twice, err := tg.Tag(once, testMetadata())
	require.NoError(t, err)

	intfc, err := jpegstructure.NewJpegMediaParser().ParseBytes(twice)
	require.NoError(t, err)
	sl := intfc.(*jpegstructure.SegmentList)

	app13Count := 0
	for _, s := range sl.Segments() {
		if s.MarkerId == 0xED {
			app13Count++
		}
	}
	assert.Equal(t, 1, app13Count)
}
