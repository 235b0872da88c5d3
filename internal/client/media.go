package client

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/roasbeef/skylark/internal/wire"
)

const (
	// uploadChunkSize is the APPEND segment size.
	uploadChunkSize = 1 << 20

	// processingTimeout caps how long a FINALIZE may sit in server-side
	// transcode before the upload is abandoned.
	processingTimeout = 20 * time.Second
)

// mediaCategory classifies an upload for the DM pipeline.
func mediaCategory(mimeType string) string {
	switch {
	case mimeType == "image/gif":
		return "dm_gif"
	case strings.HasPrefix(mimeType, "image"):
		return "dm_image"
	case strings.HasPrefix(mimeType, "video"):
		return "dm_video"
	default:
		return ""
	}
}

func (c *Client) uploadURL() string {
	return c.cfg.UploadBaseURL + "i/media/upload.json"
}

// UploadMedia pushes a media blob through the INIT, APPEND, FINALIZE,
// STATUS sequence and returns the media id to attach to a send. Blocks
// until server-side processing completes.
func (c *Client) UploadMedia(ctx context.Context, threadID string,
	data []byte, mimeType string) (string, error) {

	referer := c.messagesReferer(threadID)

	initResp, err := c.mediaUploadInit(
		ctx, referer, len(data), mimeType,
	)
	if err != nil {
		return "", fmt.Errorf("media init: %w", err)
	}
	if initResp.Error != "" {
		return "", fmt.Errorf("media init: %s", initResp.Error)
	}
	mediaID := initResp.MediaIDString.String()
	if mediaID == "" {
		return "", fmt.Errorf("media init: no media id")
	}

	sum := md5.Sum(data)
	checksum := hex.EncodeToString(sum[:])

	for segment := 0; segment*uploadChunkSize < len(data); segment++ {
		start := segment * uploadChunkSize
		end := min(start+uploadChunkSize, len(data))

		err := c.mediaUploadAppend(
			ctx, referer, mediaID, segment, data[start:end],
		)
		if err != nil {
			return "", fmt.Errorf("media append "+
				"segment %d: %w", segment, err)
		}
	}

	finalizeResp, err := c.mediaUploadFinalize(
		ctx, referer, mediaID, checksum,
	)
	if err != nil {
		return "", fmt.Errorf("media finalize: %w", err)
	}
	if finalizeResp.Error != "" {
		return "", fmt.Errorf("media finalize: %s", finalizeResp.Error)
	}

	err = c.waitForProcessing(
		ctx, referer, mediaID, finalizeResp.ProcessingInfo,
	)
	if err != nil {
		return "", err
	}

	return mediaID, nil
}

func (c *Client) mediaUploadInit(ctx context.Context, referer string,
	totalBytes int, mimeType string) (*wire.MediaUploadResponse, error) {

	var resp wire.MediaUploadResponse
	_, err := c.do(ctx, &apiRequest{
		method: http.MethodPost,
		url:    c.uploadURL(),
		params: url.Values{
			"command":        {"INIT"},
			"total_bytes":    {strconv.Itoa(totalBytes)},
			"media_type":     {mimeType},
			"media_category": {mediaCategory(mimeType)},
		},
		referer: referer,
	}, &resp)
	if err != nil {
		return nil, err
	}

	return &resp, nil
}

func (c *Client) mediaUploadAppend(ctx context.Context, referer, mediaID string,
	segment int, chunk []byte) error {

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("media", "blob")
	if err != nil {
		return fmt.Errorf("build form: %w", err)
	}
	if _, err := part.Write(chunk); err != nil {
		return fmt.Errorf("build form: %w", err)
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("build form: %w", err)
	}

	_, err = c.do(ctx, &apiRequest{
		method: http.MethodPost,
		url:    c.uploadURL(),
		params: url.Values{
			"command":       {"APPEND"},
			"media_id":      {mediaID},
			"segment_index": {strconv.Itoa(segment)},
		},
		body:            body.Bytes(),
		bodyContentType: form.FormDataContentType(),
		referer:         referer,
	}, nil)

	return err
}

func (c *Client) mediaUploadFinalize(ctx context.Context, referer, mediaID,
	originalMD5 string) (*wire.MediaUploadResponse, error) {

	var resp wire.MediaUploadResponse
	_, err := c.do(ctx, &apiRequest{
		method: http.MethodPost,
		url:    c.uploadURL(),
		params: url.Values{
			"command":      {"FINALIZE"},
			"media_id":     {mediaID},
			"original_md5": {originalMD5},
		},
		referer: referer,
	}, &resp)
	if err != nil {
		return nil, err
	}

	return &resp, nil
}

func (c *Client) mediaUploadStatus(ctx context.Context, referer,
	mediaID string) (*wire.MediaUploadResponse, error) {

	var resp wire.MediaUploadResponse
	_, err := c.do(ctx, &apiRequest{
		url: c.uploadURL(),
		params: url.Values{
			"command":  {"STATUS"},
			"media_id": {mediaID},
		},
		referer: referer,
	}, &resp)
	if err != nil {
		return nil, err
	}

	return &resp, nil
}

// waitForProcessing polls STATUS at the server-suggested cadence until the
// transcode finishes. Images usually skip processing entirely.
func (c *Client) waitForProcessing(ctx context.Context, referer, mediaID string,
	info *wire.MediaUploadProcessingInfo) error {

	start := time.Now()
	for info != nil && (info.State == wire.MediaProcessingPending ||
		info.State == wire.MediaProcessingInProgress) {

		if time.Since(start) > processingTimeout {
			return fmt.Errorf("media %s: processing timed out",
				mediaID)
		}

		wait := time.Duration(info.CheckAfterSecs) * time.Second
		if wait <= 0 {
			wait = time.Second
		}
		log.DebugS(ctx, "Waiting on media processing",
			"media_id", mediaID, "state", info.State,
			"wait", wait)

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}

		status, err := c.mediaUploadStatus(ctx, referer, mediaID)
		if err != nil {
			return fmt.Errorf("media status: %w", err)
		}
		info = status.ProcessingInfo
	}

	if info != nil && info.State == wire.MediaProcessingFailed {
		return fmt.Errorf("media %s: processing failed", mediaID)
	}

	return nil
}
