package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// MiniMax Hailuo Video Generation Service
// Uses the MiniMax REST API to generate video clips from text prompts plus
// an optional first-frame image.
// Follows a deferred request pattern: submit generation → poll by task_id →
// resolve file_id to a download URL → download.
// ---------------------------------------------------------------------------

const (
	minimaxBaseURL           = "https://api.minimax.io"
	minimaxDefaultModel      = "MiniMax-Hailuo-2.3"
	minimaxResolution        = "1080P"
	minimaxPollMinInterval   = 5 * time.Second
	minimaxPollMaxInterval   = 20 * time.Second
	minimaxPollBackoffFactor = 1.5
	minimaxMaxPollDuration   = 5 * time.Minute // Hard timeout per clip
)

// minimaxDurations are the clip lengths the Hailuo model accepts. Requested
// durations are rounded up to the nearest supported value.
var minimaxDurations = []int{6, 10}

// MiniMaxService handles video generation via MiniMax's Hailuo API.
type MiniMaxService struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

var _ VideoGenerator = (*MiniMaxService)(nil)

// NewMiniMaxService creates a MiniMax video generation service. An empty
// model selects the default Hailuo model.
func NewMiniMaxService(apiKey, model string) *MiniMaxService {
	if model == "" {
		model = minimaxDefaultModel
	}
	return &MiniMaxService{
		apiKey: apiKey,
		model:  model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second, // Per-call timeout, not the full poll cycle
		},
	}
}

func (s *MiniMaxService) Name() string { return "minimax" }

// ---------------------------------------------------------------------------
// Request / Response types
// ---------------------------------------------------------------------------

// minimaxGenerationRequest is the body for POST /v1/video_generation.
type minimaxGenerationRequest struct {
	Model           string `json:"model"`
	Prompt          string `json:"prompt"`
	Duration        int    `json:"duration"`
	Resolution      string `json:"resolution"`
	FirstFrameImage string `json:"first_frame_image,omitempty"` // base64 data URL
}

type minimaxGenerationResponse struct {
	TaskID   string           `json:"task_id"`
	BaseResp *minimaxBaseResp `json:"base_resp,omitempty"`
}

// minimaxQueryResponse is the response from GET /v1/query/video_generation.
// Status moves through Queueing/Processing to "Success" (file_id set) or
// "Failed" (base_resp carries the reason). Casing varies across API
// versions, so status checks are case-insensitive.
type minimaxQueryResponse struct {
	TaskID   string           `json:"task_id"`
	Status   string           `json:"status"`
	FileID   string           `json:"file_id"`
	BaseResp *minimaxBaseResp `json:"base_resp,omitempty"`
}

type minimaxBaseResp struct {
	StatusCode int    `json:"status_code"`
	StatusMsg  string `json:"status_msg"`
}

// minimaxFileResponse is the response from GET /v1/files/retrieve.
type minimaxFileResponse struct {
	File struct {
		FileID      int64  `json:"file_id"`
		DownloadURL string `json:"download_url"`
	} `json:"file"`
	BaseResp *minimaxBaseResp `json:"base_resp,omitempty"`
}

// GenerateFromImage animates a still image. The image is inlined as a base64
// data URL in the first_frame_image field.
func (s *MiniMaxService) GenerateFromImage(ctx context.Context, imagePath, prompt string, durationSec int) ([]byte, error) {
	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read first frame image %s: %w", imagePath, err)
	}

	dataURL := "data:" + imageMimeType(imagePath) + ";base64," + base64.StdEncoding.EncodeToString(imageData)

	return s.generate(ctx, minimaxGenerationRequest{
		Model:           s.model,
		Prompt:          prompt,
		Duration:        clampMiniMaxDuration(durationSec),
		Resolution:      minimaxResolution,
		FirstFrameImage: dataURL,
	})
}

// GenerateFromText generates a video from the prompt alone.
func (s *MiniMaxService) GenerateFromText(ctx context.Context, prompt string, durationSec int) ([]byte, error) {
	return s.generate(ctx, minimaxGenerationRequest{
		Model:      s.model,
		Prompt:     prompt,
		Duration:   clampMiniMaxDuration(durationSec),
		Resolution: minimaxResolution,
	})
}

func (s *MiniMaxService) generate(ctx context.Context, reqBody minimaxGenerationRequest) ([]byte, error) {
	log.Printf("[MiniMax] Starting video generation (model=%s, promptLen=%d, hasImage=%v, duration=%ds)",
		reqBody.Model, len(reqBody.Prompt), reqBody.FirstFrameImage != "", reqBody.Duration)

	// Step 1: Submit generation request
	taskID, err := s.submitGeneration(ctx, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to submit video generation: %w", err)
	}

	log.Printf("[MiniMax] Generation submitted, task_id=%s", taskID)

	// Step 2: Poll for completion
	fileID, err := s.pollForFileID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	// Step 3: Resolve the file_id to a download URL
	downloadURL, err := s.retrieveDownloadURL(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve download URL: %w", err)
	}

	log.Printf("[MiniMax] Video ready, downloading...")

	// Step 4: Download the video
	videoBytes, err := s.downloadVideo(ctx, downloadURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download generated video: %w", err)
	}

	if len(videoBytes) == 0 {
		return nil, fmt.Errorf("downloaded video is empty (0 bytes)")
	}

	log.Printf("[MiniMax] Video downloaded successfully (%d bytes)", len(videoBytes))
	return videoBytes, nil
}

// submitGeneration sends the initial video generation request and returns the task_id.
func (s *MiniMaxService) submitGeneration(ctx context.Context, reqBody minimaxGenerationRequest) (string, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	body, err := s.doJSON(ctx, "POST", minimaxBaseURL+"/v1/video_generation", bytes.NewReader(jsonData))
	if err != nil {
		return "", err
	}

	var genResp minimaxGenerationResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return "", fmt.Errorf("failed to parse generation response: %w (body: %s)", err, string(body))
	}

	if genResp.TaskID == "" {
		msg := "no task_id in generation response"
		if genResp.BaseResp != nil && genResp.BaseResp.StatusMsg != "" {
			msg = genResp.BaseResp.StatusMsg
		}
		return "", fmt.Errorf("%s: %s", msg, string(body))
	}

	return genResp.TaskID, nil
}

// pollForFileID polls the query endpoint until the task succeeds or fails.
//
// Polling strategy: exponential backoff starting at 5s, scaling by 1.5x up
// to a 20s cap, with a 5 minute hard timeout per clip.
func (s *MiniMaxService) pollForFileID(ctx context.Context, taskID string) (string, error) {
	deadline := time.Now().Add(minimaxMaxPollDuration)
	pollCount := 0
	currentInterval := minimaxPollMinInterval

	for {
		if time.Now().After(deadline) {
			return "", fmt.Errorf("video generation timed out after %v (polled %d times, task_id=%s)",
				minimaxMaxPollDuration, pollCount, taskID)
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("video generation cancelled: %w", ctx.Err())
		case <-time.After(currentInterval):
		}

		next := time.Duration(float64(currentInterval) * minimaxPollBackoffFactor)
		if next > minimaxPollMaxInterval {
			next = minimaxPollMaxInterval
		}
		currentInterval = next

		pollCount++

		result, err := s.queryTask(ctx, taskID)
		if err != nil {
			return "", fmt.Errorf("failed to poll video result (attempt %d): %w", pollCount, err)
		}

		log.Printf("[MiniMax] Poll %d: status=%s", pollCount, result.Status)

		switch strings.ToLower(result.Status) {
		case "success":
			if result.FileID == "" {
				return "", fmt.Errorf("task %s succeeded but returned no file_id", taskID)
			}
			return result.FileID, nil

		case "failed", "fail":
			errMsg := "unknown error"
			if result.BaseResp != nil && result.BaseResp.StatusMsg != "" {
				errMsg = result.BaseResp.StatusMsg
			}
			return "", fmt.Errorf("video generation failed: %s (task_id=%s)", errMsg, taskID)
		}
	}
}

func (s *MiniMaxService) queryTask(ctx context.Context, taskID string) (*minimaxQueryResponse, error) {
	body, err := s.doJSON(ctx, "GET", minimaxBaseURL+"/v1/query/video_generation?task_id="+taskID, nil)
	if err != nil {
		return nil, err
	}

	var result minimaxQueryResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse query response: %w (body: %s)", err, string(body))
	}

	return &result, nil
}

func (s *MiniMaxService) retrieveDownloadURL(ctx context.Context, fileID string) (string, error) {
	body, err := s.doJSON(ctx, "GET", minimaxBaseURL+"/v1/files/retrieve?file_id="+fileID, nil)
	if err != nil {
		return "", err
	}

	var fileResp minimaxFileResponse
	if err := json.Unmarshal(body, &fileResp); err != nil {
		return "", fmt.Errorf("failed to parse file response: %w (body: %s)", err, string(body))
	}

	if fileResp.File.DownloadURL == "" {
		return "", fmt.Errorf("no download_url for file %s: %s", fileID, string(body))
	}

	return fileResp.File.DownloadURL, nil
}

// doJSON performs an authenticated API call and returns the response body.
func (s *MiniMaxService) doJSON(ctx context.Context, method, url string, reqBody io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("MiniMax returned status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// downloadVideo fetches the video bytes from the given URL.
func (s *MiniMaxService) downloadVideo(ctx context.Context, videoURL string) ([]byte, error) {
	// Generated clips can be large; use a longer timeout than API calls.
	downloadClient := &http.Client{Timeout: 120 * time.Second}

	req, err := http.NewRequestWithContext(ctx, "GET", videoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := downloadClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("video download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read video data: %w", err)
	}

	return data, nil
}

// clampMiniMaxDuration rounds a requested duration up to the nearest
// supported clip length, capping at the longest.
func clampMiniMaxDuration(durationSec int) int {
	for _, d := range minimaxDurations {
		if durationSec <= d {
			return d
		}
	}
	return minimaxDurations[len(minimaxDurations)-1]
}

// imageMimeType guesses the MIME type for a first-frame image from its
// extension. The pipeline only produces PNG graphics, but JPEG screenshots
// from external sources are accepted too.
func imageMimeType(path string) string {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(lower, ".webp"):
		return "image/webp"
	default:
		return "image/png"
	}
}
