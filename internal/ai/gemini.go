package ai

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "strings"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient talks to the Google Generative Language REST API. The API key
// travels in the Request so the caller can rotate credential slots per call.
type GeminiClient struct {
    http    *http.Client
    baseURL string
}

func NewGeminiClient() *GeminiClient {
    return &GeminiClient{http: &http.Client{}, baseURL: geminiBaseURL}
}

// NewGeminiClientWithBaseURL is used by tests to point at a stub server.
func NewGeminiClientWithBaseURL(baseURL string) *GeminiClient {
    return &GeminiClient{http: &http.Client{}, baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (c *GeminiClient) Name() string { return "gemini" }

type geminiGenReq struct {
    Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
    Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
    Text string `json:"text"`
}

type geminiGenResp struct {
    Candidates []struct {
        Content struct {
            Parts []geminiPart `json:"parts"`
        } `json:"content"`
        FinishReason string `json:"finishReason"`
    } `json:"candidates"`
    PromptFeedback struct {
        BlockReason string `json:"blockReason"`
    } `json:"promptFeedback"`
    Error struct {
        Code    int    `json:"code"`
        Status  string `json:"status"`
        Message string `json:"message"`
    } `json:"error"`
}

func (c *GeminiClient) Do(ctx context.Context, req Request) (Response, error) {
    if req.APIKey == "" {
        return Response{}, errors.New("missing gemini api key")
    }

    payload := geminiGenReq{Contents: []geminiContent{{Parts: []geminiPart{{Text: req.Prompt}}}}}
    body, _ := json.Marshal(payload)

    url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, req.Model)
    httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
    if err != nil {
        return Response{}, err
    }
    httpReq.Header.Set("Content-Type", "application/json")
    httpReq.Header.Set("x-goog-api-key", req.APIKey)

    resp, err := c.http.Do(httpReq)
    if err != nil {
        return Response{}, err
    }
    defer resp.Body.Close()

    raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

    if resp.StatusCode == http.StatusTooManyRequests {
        return Response{}, ErrRateLimited
    }
    if resp.StatusCode < 200 || resp.StatusCode >= 300 {
        // The API also signals quota exhaustion through the error status field.
        var r geminiGenResp
        if json.Unmarshal(raw, &r) == nil && r.Error.Status == "RESOURCE_EXHAUSTED" {
            return Response{}, ErrRateLimited
        }
        return Response{}, &HTTPError{Provider: "gemini", StatusCode: resp.StatusCode, Body: truncate(string(raw), 512)}
    }

    var r geminiGenResp
    if err := json.Unmarshal(raw, &r); err != nil {
        return Response{}, err
    }
    if r.PromptFeedback.BlockReason != "" {
        return Response{}, fmt.Errorf("%w: blocked (%s)", ErrContentRefused, r.PromptFeedback.BlockReason)
    }
    if len(r.Candidates) == 0 {
        return Response{}, fmt.Errorf("%w: no candidates", ErrContentRefused)
    }

    var sb strings.Builder
    for _, p := range r.Candidates[0].Content.Parts {
        sb.WriteString(p.Text)
    }
    text := strings.TrimSpace(sb.String())
    if text == "" {
        return Response{}, fmt.Errorf("%w: empty text", ErrContentRefused)
    }
    return Response{Text: text}, nil
}

func truncate(s string, n int) string {
    if len(s) <= n {
        return s
    }
    return s[:n]
}
