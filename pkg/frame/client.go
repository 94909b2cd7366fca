package frame

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"favescreen/pkg/config"
	"favescreen/pkg/errors"
	"favescreen/pkg/httpx"
	"favescreen/pkg/logger"
)

// csrfCookieName is the cookie the service issues at sign-in; its value
// must echo back in the X-CSRFToken header on every mutating request.
const csrfCookieName = "prod.csrftoken"

// Client is the HTTP client for the frame service API.
type Client struct {
	cfg    config.FrameConfig
	http   *httpx.Client
	logger logger.Logger

	jar http.CookieJar

	// Upload tokens are cached per album; concurrent uploads into the
	// same album must not race the token request.
	tokenMu      sync.Mutex
	uploadTokens map[int64]string
}

// NewClient creates a frame service client. The httpx client must be
// dedicated to this service; sign-in installs a cookie jar and CSRF header
// on it.
func NewClient(cfg config.FrameConfig, hc *httpx.Client, log logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	hc.SetCookieJar(jar)

	return &Client{
		cfg:          cfg,
		http:         hc,
		logger:       log,
		jar:          jar,
		uploadTokens: make(map[int64]string),
	}, nil
}

// SignIn authenticates with the account username and password. The session
// rides in cookies; the CSRF token cookie is copied into a default header
// for the mutating calls that follow.
func (c *Client) SignIn(ctx context.Context) error {
	form := url.Values{
		"email":    {c.cfg.Username},
		"password": {c.cfg.Password},
	}

	if err := c.http.PostForm(ctx, c.cfg.BaseURL+"/www-login/", form, nil); err != nil {
		return fmt.Errorf("frame sign-in failed: %w", err)
	}

	base, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid frame base URL: %w", err)
	}

	csrf := ""
	for _, cookie := range c.jar.Cookies(base) {
		if cookie.Name == csrfCookieName {
			csrf = cookie.Value
			break
		}
	}
	if csrf == "" {
		return &errors.Error{
			Type:    errors.ErrorTypeAuth,
			Message: "sign-in response did not set a CSRF token cookie",
			Code:    0,
		}
	}
	c.http.SetHeader("X-CSRFToken", csrf)

	c.logger.Info("signed in to frame service")
	return nil
}

// SignOut ends the session. Best effort; a failed sign-out only costs a
// server-side session that will expire anyway.
func (c *Client) SignOut(ctx context.Context) {
	if err := c.http.PostJSON(ctx, c.cfg.BaseURL+"/sign_out/", struct{}{}, nil); err != nil {
		c.logger.WarnWithFields("frame sign-out failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// ListAlbums returns every album on the account.
func (c *Client) ListAlbums(ctx context.Context) ([]Album, error) {
	var resp albumListResponse
	if _, err := c.http.GetJSON(ctx, c.cfg.BaseURL+"/v2/albums", &resp); err != nil {
		return nil, fmt.Errorf("failed to list albums: %w", err)
	}
	return resp.Albums, nil
}

// CreateAlbum creates an empty album with the given title.
func (c *Client) CreateAlbum(ctx context.Context, title string) (*Album, error) {
	var album Album
	if err := c.http.PostJSON(ctx, c.cfg.BaseURL+"/v2/albums", map[string]string{
		"title": title,
	}, &album); err != nil {
		return nil, fmt.Errorf("failed to create album %q: %w", title, err)
	}

	c.logger.InfoWithFields("created album", map[string]interface{}{
		"album": title,
		"id":    album.ID,
	})
	return &album, nil
}

// AlbumPhotos returns one page of an album's photos, most recent first.
func (c *Client) AlbumPhotos(ctx context.Context, albumID int64, page, limit int) ([]Photo, error) {
	u := fmt.Sprintf("%s/v2/albums/%d/photos?page=%d&limit=%d", c.cfg.BaseURL, albumID, page, limit)

	var resp photoListResponse
	if _, err := c.http.GetJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("failed to list album photos: %w", err)
	}
	return resp.Photos, nil
}

// ListPlaylists returns every playlist on the account.
func (c *Client) ListPlaylists(ctx context.Context) ([]Playlist, error) {
	var playlists []Playlist
	if _, err := c.http.GetJSON(ctx, c.cfg.BaseURL+"/v2/playlists", &playlists); err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}
	return playlists, nil
}

// CreatePlaylist creates an empty playlist with the given name.
func (c *Client) CreatePlaylist(ctx context.Context, name string) (*Playlist, error) {
	var playlist Playlist
	if err := c.http.PostJSON(ctx, c.cfg.BaseURL+"/v2/playlists", map[string]string{
		"name": name,
	}, &playlist); err != nil {
		return nil, fmt.Errorf("failed to create playlist %q: %w", name, err)
	}

	c.logger.InfoWithFields("created playlist", map[string]interface{}{
		"playlist": name,
		"id":       playlist.ID,
	})
	return &playlist, nil
}

// AddToPlaylist appends a photo to a playlist.
func (c *Client) AddToPlaylist(ctx context.Context, playlistID, photoID int64) error {
	u := fmt.Sprintf("%s/v2/playlists/%d/photos", c.cfg.BaseURL, playlistID)
	if err := c.http.PostJSON(ctx, u, map[string][]int64{
		"photoIds": {photoID},
	}, nil); err != nil {
		return fmt.Errorf("failed to add photo to playlist: %w", err)
	}
	return nil
}

// ListFrames returns the physical frames on the account.
func (c *Client) ListFrames(ctx context.Context) ([]Frame, error) {
	var frames []Frame
	if _, err := c.http.GetJSON(ctx, c.cfg.BaseURL+"/v2/frames", &frames); err != nil {
		return nil, fmt.Errorf("failed to list frames: %w", err)
	}
	return frames, nil
}

// EnablePlaylist subscribes a frame to a playlist.
func (c *Client) EnablePlaylist(ctx context.Context, framePK, playlistID int64) error {
	u := fmt.Sprintf("%s/v2/frames/%d/playlists", c.cfg.BaseURL, framePK)
	if err := c.http.PostJSON(ctx, u, map[string]int64{
		"playlistId": playlistID,
	}, nil); err != nil {
		return fmt.Errorf("failed to enable playlist on frame: %w", err)
	}
	return nil
}

// UploadPhoto pushes one JPEG into an album: fetch (or reuse) the album's
// upload token, register the upload to get a presigned S3 form, POST the
// form, then poke the upload monitor once so the service ingests the batch.
func (c *Client) UploadPhoto(ctx context.Context, albumID int64, filename string, data []byte) error {
	token, err := c.uploadToken(ctx, albumID)
	if err != nil {
		return err
	}

	form, err := c.registerUpload(ctx, albumID, token, filename, len(data))
	if err != nil {
		return err
	}

	if err := c.postPresignedForm(ctx, form, filename, data); err != nil {
		return err
	}

	c.pollMonitor(ctx, form.BatchUploadID)

	c.logger.DebugWithFields("uploaded photo", map[string]interface{}{
		"album_id": albumID,
		"filename": filename,
		"size":     len(data),
	})
	return nil
}

// uploadToken returns the album's cached upload token, requesting one on
// first use.
func (c *Client) uploadToken(ctx context.Context, albumID int64) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if token, ok := c.uploadTokens[albumID]; ok {
		return token, nil
	}

	var resp uploadTokenResponse
	if err := c.http.PostJSON(ctx, c.cfg.BaseURL+"/v2/upload/token", map[string]int64{
		"albumId": albumID,
	}, &resp); err != nil {
		return "", fmt.Errorf("failed to get upload token: %w", err)
	}

	c.uploadTokens[albumID] = resp.Token
	return resp.Token, nil
}

// registerUpload announces the file and receives the presigned form.
func (c *Client) registerUpload(ctx context.Context, albumID int64, token, filename string, size int) (*uploadForm, error) {
	var resp registerUploadResponse
	if err := c.http.PostJSON(ctx, c.cfg.BaseURL+"/v2/upload/receivers", map[string]interface{}{
		"albumId":  albumID,
		"token":    token,
		"fileName": filename,
		"fileSize": size,
		"fileType": "image/jpeg",
	}, &resp); err != nil {
		return nil, fmt.Errorf("failed to register upload: %w", err)
	}

	if len(resp.Data.Items) == 0 {
		return nil, &errors.Error{
			Type:    errors.ErrorTypeParsing,
			Message: "upload registration returned no presigned form",
			Code:    0,
		}
	}
	return &resp.Data.Items[0], nil
}

// postPresignedForm performs the S3 multipart POST. The storage backend
// answers 201 on success; anything else fails the upload. No retry here, a
// presigned form is single-use.
func (c *Client) postPresignedForm(ctx context.Context, form *uploadForm, filename string, data []byte) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fields := [][2]string{
		{"key", form.Key},
		{"acl", form.ACL},
		{"content-type", form.ContentType},
		{"x-amz-meta-batch-upload-id", form.BatchUploadID},
		{"success_action_status", "201"},
		{"AWSAccessKeyId", form.AccessKeyID},
		{"Policy", form.Policy},
		{"Signature", form.Signature},
	}
	for _, field := range fields {
		if err := mw.WriteField(field[0], field[1]); err != nil {
			return fmt.Errorf("failed to build upload form: %w", err)
		}
	}

	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("failed to build upload form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, form.UploadURL, &body)
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("storage upload failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusCreated {
		return &errors.Error{
			Type:    errors.ErrorTypeServerError,
			Message: fmt.Sprintf("storage upload returned status %d", resp.StatusCode),
			Code:    resp.StatusCode,
		}
	}
	return nil
}

// pollMonitor asks the upload monitor about the batch once and discards
// the answer. The poke is what nudges ingestion; the outcome is confirmed
// by resolving the photo afterwards.
func (c *Client) pollMonitor(ctx context.Context, batchUploadID string) {
	if c.cfg.MonitorURL == "" || batchUploadID == "" {
		return
	}

	u := fmt.Sprintf("%s?batchUploadId=%s", c.cfg.MonitorURL, url.QueryEscape(batchUploadID))
	var status map[string]interface{}
	if _, err := c.http.GetJSON(ctx, u, &status); err != nil {
		c.logger.DebugWithFields("upload monitor poll failed", map[string]interface{}{
			"batch_upload_id": batchUploadID,
			"error":           err.Error(),
		})
	}
}

// ResolvePhoto finds a freshly uploaded photo by filename among the most
// recent photos of the album. Ingestion is asynchronous, so a missing
// photo is reported as errors.ErrPhotoNotResolved rather than a hard
// failure.
func (c *Client) ResolvePhoto(ctx context.Context, albumID int64, filename string) (*Photo, error) {
	photos, err := c.AlbumPhotos(ctx, albumID, 1, c.cfg.ListPageSize)
	if err != nil {
		return nil, err
	}

	for i := range photos {
		if photos[i].Filename == filename {
			return &photos[i], nil
		}
	}

	return nil, errors.ErrPhotoNotResolved
}
