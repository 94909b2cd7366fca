// Package frame talks to the photo-frame cloud service: albums and
// playlists, presigned photo uploads, and pairing the two so every album of
// archived favorites also plays on the frames.
package frame

// Album is a photo container on the frame service.
type Album struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	PhotoCount int    `json:"photo_count"`
}

// Photo is one picture inside an album.
type Photo struct {
	ID       int64  `json:"id"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// Playlist is a slideshow that frames subscribe to.
type Playlist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Frame is one physical photo frame on the account.
type Frame struct {
	PK   int64  `json:"framePk"`
	Name string `json:"name"`
}

// Pair is an album and its companion playlist, created together and named
// identically. Albums hold the photos; playlists put them on the frames.
type Pair struct {
	Album    *Album
	Playlist *Playlist
}

// uploadForm is the presigned S3 POST the service hands back when an
// upload is registered. Field names mirror the form fields the receiver
// expects.
type uploadForm struct {
	UploadURL     string `json:"s3UploadUrl"`
	Key           string `json:"key"`
	ACL           string `json:"acl"`
	ContentType   string `json:"fileType"`
	BatchUploadID string `json:"batchUploadId"`
	AccessKeyID   string `json:"AWSAccessKeyId"`
	Policy        string `json:"Policy"`
	Signature     string `json:"Signature"`
}

// uploadTokenResponse answers the upload-token request.
type uploadTokenResponse struct {
	Token string `json:"token"`
}

// registerUploadResponse wraps the presigned form.
type registerUploadResponse struct {
	Data struct {
		Items []uploadForm `json:"items"`
	} `json:"data"`
}

// albumListResponse is the browse-albums envelope.
type albumListResponse struct {
	Albums []Album `json:"albums"`
}

// photoListResponse is the album-photos envelope.
type photoListResponse struct {
	Photos []Photo `json:"photos"`
}
