package imaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SanaProvider generates images through a self-hosted SANA Sprint server and
// stores the results on local disk behind a public base URL. SANA accepts a
// reference image name, so character anchoring is supported.
type SanaProvider struct {
	baseURL           string
	client            *http.Client
	imageSavePath     string
	imageBaseURL      string
	promptStyleSuffix string
	logger            *zap.Logger
}

var _ Provider = (*SanaProvider)(nil)

// NewSanaProvider validates the storage settings and returns the provider.
func NewSanaProvider(baseURL string, timeout time.Duration, imageSavePath, imageBaseURL, promptStyleSuffix string, logger *zap.Logger) (*SanaProvider, error) {
	if imageSavePath == "" {
		return nil, fmt.Errorf("image save path (IMAGE_SAVE_PATH) is not configured")
	}
	if imageBaseURL == "" {
		return nil, fmt.Errorf("image public base URL (IMAGE_PUBLIC_BASE_URL) is not configured")
	}
	return &SanaProvider{
		baseURL:           baseURL,
		client:            &http.Client{Timeout: timeout},
		imageSavePath:     imageSavePath,
		imageBaseURL:      strings.TrimSuffix(imageBaseURL, "/"),
		promptStyleSuffix: promptStyleSuffix,
		logger:            logger.Named("sana_provider"),
	}, nil
}

func (p *SanaProvider) Name() string { return "sana" }

func (p *SanaProvider) SupportsCharacterReference() bool { return true }

func (p *SanaProvider) TestConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("SANA server is unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("SANA server returned status %d", resp.StatusCode)
	}
	return nil
}

func (p *SanaProvider) CreateCharacterReference(ctx context.Context, storyID, prompt string) (string, error) {
	fileName := fmt.Sprintf("%s-character.jpg", storyID)
	if _, err := p.generateAndStore(ctx, prompt, "1:1", "", fileName); err != nil {
		return "", err
	}
	// the stored file name doubles as the reference handle
	return fileName, nil
}

// GenerateCover renders the cover. Consistency comes from the reference
// image, so no textual visual lock is emitted.
func (p *SanaProvider) GenerateCover(ctx context.Context, storyID, prompt, characterRef string) (string, string, error) {
	url, err := p.generateAndStore(ctx, prompt, "2:3", characterRef, fmt.Sprintf("%s-cover.jpg", storyID))
	return url, "", err
}

func (p *SanaProvider) GenerateChapterImage(ctx context.Context, storyID, prompt, characterRef, visualLock string, position int) (string, error) {
	return p.generateAndStore(ctx, prompt, "3:2", characterRef, fmt.Sprintf("%s-chapter-%d.jpg", storyID, position))
}

type sanaAPIRequest struct {
	Prompt         string `json:"prompt"`
	Ratio          string `json:"ratio"`
	ReferenceImage string `json:"reference_image,omitempty"`
}

func (p *SanaProvider) generateAndStore(ctx context.Context, prompt, ratio, characterRef, fileName string) (string, error) {
	log := p.logger.With(zap.String("file_name", fileName), zap.String("ratio", ratio))

	imageData, err := p.callAPI(ctx, prompt+p.promptStyleSuffix, ratio, characterRef)
	if err != nil {
		log.Error("SANA API call failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrImageGenerationFailed, err)
	}
	if len(imageData) == 0 {
		return "", fmt.Errorf("%w: API returned empty data", ErrImageGenerationFailed)
	}

	filePath := filepath.Join(p.imageSavePath, fileName)
	if err := os.WriteFile(filePath, imageData, 0644); err != nil {
		log.Error("failed to save image to file", zap.String("path", filePath), zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrImageSaveFailed, err)
	}

	imageURL := p.imageBaseURL + "/" + fileName
	log.Info("image stored", zap.String("url", imageURL), zap.Int("size_bytes", len(imageData)))
	return imageURL, nil
}

func (p *SanaProvider) callAPI(ctx context.Context, prompt, ratio, characterRef string) ([]byte, error) {
	reqBody, err := json.Marshal(sanaAPIRequest{
		Prompt:         prompt,
		Ratio:          ratio,
		ReferenceImage: characterRef,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/generate", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/*")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, readErr := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}
	if readErr != nil {
		return nil, fmt.Errorf("failed to read response body: %w", readErr)
	}
	return bodyBytes, nil
}
