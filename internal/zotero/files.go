// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package zotero

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// writeResponse is the body of a multi-object write.
type writeResponse struct {
	Successful map[string]Item            `json:"successful"`
	Failed     map[string]json.RawMessage `json:"failed"`
}

// uploadAuthorization is the reply to an upload registration.
type uploadAuthorization struct {
	Exists      int    `json:"exists"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Prefix      string `json:"prefix"`
	Suffix      string `json:"suffix"`
	UploadKey   string `json:"uploadKey"`
}

// CreateAttachment creates an imported_file attachment under parentKey and
// returns the new attachment key. The file itself is sent by UploadFile.
func (c *Client) CreateAttachment(ctx context.Context, parentKey, filename, contentType string) (string, error) {
	body, err := json.Marshal([]map[string]any{{
		"itemType":    "attachment",
		"parentItem":  parentKey,
		"linkMode":    LinkModeImportedFile,
		"title":       filename,
		"filename":    filename,
		"contentType": contentType,
		"tags":        []any{},
		"collections": []any{},
	}})
	if err != nil {
		return "", fmt.Errorf("encoding attachment: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.userPath("items"), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var wr writeResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return "", fmt.Errorf("parsing attachment create response: %w", err)
	}
	created, ok := wr.Successful["0"]
	if !ok || created.Key == "" {
		msg := "no key in successful[\"0\"]"
		if f, ok := wr.Failed["0"]; ok {
			msg = string(f)
		}
		return "", &APIError{Status: 0, Message: "creating attachment: " + msg}
	}
	return created.Key, nil
}

// UploadFile registers and transfers the content of an attachment. When the
// server already holds identical content the transfer is skipped and
// UploadFile returns nil.
func (c *Client) UploadFile(ctx context.Context, attachmentKey, filename string, data []byte) error {
	sum := md5.Sum(data)
	form := url.Values{}
	form.Set("md5", hex.EncodeToString(sum[:]))
	form.Set("filename", filename)
	form.Set("filesize", strconv.Itoa(len(data)))
	form.Set("mtime", strconv.FormatInt(time.Now().UnixMilli(), 10))

	fileURL := c.userPath("items", url.PathEscape(attachmentKey), "file")

	var auth uploadAuthorization
	if err := c.postForm(ctx, fileURL, form, &auth); err != nil {
		return fmt.Errorf("registering upload for %s: %w", attachmentKey, err)
	}
	if auth.Exists == 1 {
		c.log.Debug("upload content already present", zap.String("attachment", attachmentKey))
		return nil
	}
	if auth.URL == "" || auth.UploadKey == "" {
		return &APIError{Status: 0, Message: "upload authorization missing url or uploadKey"}
	}

	payload := make([]byte, 0, len(auth.Prefix)+len(data)+len(auth.Suffix))
	payload = append(payload, auth.Prefix...)
	payload = append(payload, data...)
	payload = append(payload, auth.Suffix...)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, auth.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating storage request: %w", err)
	}
	req.Header.Set("Content-Type", auth.ContentType)
	resp, err := c.do(ctx, req)
	if err != nil {
		return fmt.Errorf("uploading content for %s: %w", attachmentKey, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	done := url.Values{}
	done.Set("upload", auth.UploadKey)
	if err := c.postForm(ctx, fileURL, done, nil); err != nil {
		return fmt.Errorf("completing upload for %s: %w", attachmentKey, err)
	}
	return nil
}

func (c *Client) postForm(ctx context.Context, rawURL string, form url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("If-None-Match", "*")

	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing upload response: %w", err)
	}
	return nil
}

// DownloadFile returns the stored content of an attachment.
func (c *Client) DownloadFile(ctx context.Context, attachmentKey string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.userPath("items", url.PathEscape(attachmentKey), "file"), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading attachment %s: %w", attachmentKey, err)
	}
	return data, nil
}
