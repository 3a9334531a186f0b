package video

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tahcohcat/talkinghead-web/config"
	"github.com/tahcohcat/talkinghead-web/internal/logger"
)

// Index of the generation function in the space's API.
const generateFnIndex = 2

var imageMimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

var audioMimeTypes = map[string]string{
	".wav": "audio/wav",
	".mp3": "audio/mpeg",
	".ogg": "audio/ogg",
	".m4a": "audio/mp4",
}

type Client struct {
	spaceURL     string
	httpClient   *http.Client
	timeout      time.Duration
	pollAttempts int
	pollInterval time.Duration
	videosDir    string
	urlPrefix    string
	logger       *logger.Log
}

type predictRequest struct {
	FnIndex     int    `json:"fn_index"`
	Data        []any  `json:"data"`
	SessionHash string `json:"session_hash"`
}

type fileData struct {
	Name   string `json:"name"`
	Data   string `json:"data"`
	IsFile bool   `json:"is_file"`
}

type queueMessage struct {
	Msg    string          `json:"msg"`
	Output json.RawMessage `json:"output"`
	Error  any             `json:"error"`
}

func NewClient(cfg *config.VideoConfig) (*Client, error) {
	if err := os.MkdirAll(cfg.VideosDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create videos directory: %w", err)
	}

	attempts := cfg.PollAttempts
	if attempts <= 0 {
		attempts = 1
	}

	return &Client{
		spaceURL:     strings.TrimRight(cfg.SpaceURL, "/"),
		httpClient:   &http.Client{},
		timeout:      time.Duration(cfg.Timeout) * time.Second,
		pollAttempts: attempts,
		pollInterval: time.Duration(cfg.PollInterval) * time.Second,
		videosDir:    cfg.VideosDir,
		urlPrefix:    strings.TrimRight(cfg.VideoURLPrefix, "/"),
		logger:       logger.New().WithField("video", "sadtalker"),
	}, nil
}

// Render joins the space queue with the image and audio, waits for the
// result and downloads the video locally when the space returns a URL.
func (c *Client) Render(ctx context.Context, imagePath, audioPath string, opts StyleOptions) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	image, err := encodeImage(imagePath)
	if err != nil {
		return nil, err
	}
	audio, err := encodeAudio(audioPath)
	if err != nil {
		return nil, err
	}

	payload := predictRequest{
		FnIndex:     generateFnIndex,
		Data:        append([]any{image, audio}, opts.positional()...),
		SessionHash: newSessionHash(),
	}

	resp, err := c.postJSON(ctx, c.spaceURL+"/queue/join", payload)
	if err != nil {
		return nil, fmt.Errorf("failed to join queue: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	var result *Result
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn(fmt.Sprintf("queue join returned status %d, trying direct api call", resp.StatusCode))
		result, err = c.directCall(ctx, payload)
	} else {
		result, err = c.poll(ctx, payload.SessionHash)
	}
	if err != nil {
		return nil, err
	}

	c.keepLocal(ctx, result)
	return result, nil
}

// keepLocal replaces a remote video URL with a copy under the videos
// directory. The remote URL is kept if the download fails.
func (c *Client) keepLocal(ctx context.Context, result *Result) {
	if !strings.HasPrefix(result.VideoURL, "http") {
		return
	}

	local, err := c.download(ctx, result.VideoURL)
	if err != nil {
		c.logger.WithError(err).Warn("failed to download video, keeping remote url")
		return
	}
	result.VideoURL = local
}

func (c *Client) postJSON(ctx context.Context, u string, body any) (*http.Response, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(req)
}

func (c *Client) directCall(ctx context.Context, payload predictRequest) (*Result, error) {
	resp, err := c.postJSON(ctx, c.spaceURL+"/api/predict", payload)
	if err != nil {
		return nil, fmt.Errorf("direct api call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("api returned status %d: %s", resp.StatusCode, truncate(string(body), 500))
	}

	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return c.parseOutput(result)
}

// poll reads the queue's event stream until the job completes, reconnecting
// while attempts remain.
func (c *Client) poll(ctx context.Context, sessionHash string) (*Result, error) {
	u := c.spaceURL + "/queue/data?session_hash=" + url.QueryEscape(sessionHash)

	for attempt := 0; attempt < c.pollAttempts; attempt++ {
		result, done, err := c.readStream(ctx, u)
		if done {
			return result, err
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
			}
			if attempt == c.pollAttempts-1 {
				return nil, fmt.Errorf("polling failed: %w", err)
			}
			c.logger.WithError(err).Debug("queue stream interrupted")
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
		case <-time.After(c.pollInterval):
		}
	}

	return nil, ErrTimeout
}

// readStream consumes one SSE connection. done is true once the job has a
// final outcome, successful or not.
func (c *Client) readStream(ctx context.Context, u string) (*Result, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, true, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 64<<20)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}

		var msg queueMessage
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			continue
		}

		switch msg.Msg {
		case "process_starts":
			c.logger.Debug("process started on space")
		case "queue_full":
			return nil, true, ErrQueueFull
		case "process_completed":
			result, err := c.parseCompleted(msg.Output)
			return result, true, err
		default:
			if msg.Error != nil {
				return nil, true, fmt.Errorf("space error: %v", msg.Error)
			}
		}
	}

	return nil, false, scanner.Err()
}

func (c *Client) parseCompleted(raw json.RawMessage) (*Result, error) {
	var output any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &output); err != nil {
			return nil, fmt.Errorf("failed to unmarshal output: %w", err)
		}
	}

	switch v := output.(type) {
	case map[string]any:
		if e, ok := v["error"].(string); ok && e != "" {
			return nil, fmt.Errorf("space error: %s", e)
		}
		return c.parseOutput(v)
	case []any:
		return c.parseOutput(map[string]any{"data": v})
	default:
		return c.parseOutput(map[string]any{"data": []any{v}})
	}
}

// parseOutput extracts the video from a {"data": [...]} response.
func (c *Client) parseOutput(result map[string]any) (*Result, error) {
	data, ok := result["data"].([]any)
	if !ok || len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoVideo, truncate(fmt.Sprint(result), 500))
	}

	switch v := data[0].(type) {
	case map[string]any:
		if nested, ok := v["video"].(map[string]any); ok {
			v = nested
		}
		for _, key := range []string{"name", "path", "url"} {
			if p, ok := v[key].(string); ok && p != "" {
				return &Result{VideoURL: c.resolveURL(p)}, nil
			}
		}
		if d, ok := v["data"].(string); ok && d != "" {
			return &Result{VideoBase64: d}, nil
		}
	case string:
		if strings.HasPrefix(v, "data:") {
			return &Result{VideoBase64: v}, nil
		}
		if v != "" {
			return &Result{VideoURL: c.resolveURL(v)}, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrNoVideo, truncate(fmt.Sprint(result), 500))
}

// resolveURL turns a path reported by the space into a fetchable URL.
func (c *Client) resolveURL(p string) string {
	switch {
	case strings.HasPrefix(p, "http"):
		return p
	case strings.HasPrefix(p, "/"):
		return c.spaceURL + "/file=" + p
	case strings.HasPrefix(p, "./"):
		return c.spaceURL + "/file/" + strings.TrimLeft(p, "./")
	default:
		return c.spaceURL + "/file/" + p
	}
}

func (c *Client) download(ctx context.Context, videoURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	filename := fmt.Sprintf("avatar_%s.mp4", strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	f, err := os.Create(filepath.Join(c.videosDir, filename))
	if err != nil {
		return "", fmt.Errorf("failed to create video file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", fmt.Errorf("failed to save video: %w", err)
	}

	c.logger.Info(fmt.Sprintf("video downloaded to %s", f.Name()))
	return path.Join(c.urlPrefix, filename), nil
}

func encodeImage(imagePath string) (string, error) {
	raw, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	mime, ok := imageMimeTypes[strings.ToLower(filepath.Ext(imagePath))]
	if !ok {
		mime = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(raw)), nil
}

func encodeAudio(audioPath string) (fileData, error) {
	raw, err := os.ReadFile(audioPath)
	if err != nil {
		return fileData{}, fmt.Errorf("failed to read audio: %w", err)
	}
	mime, ok := audioMimeTypes[strings.ToLower(filepath.Ext(audioPath))]
	if !ok {
		mime = "audio/wav"
	}
	return fileData{
		Name: filepath.Base(audioPath),
		Data: fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(raw)),
	}, nil
}

func newSessionHash() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:11]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
