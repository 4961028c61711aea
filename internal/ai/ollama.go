package ai

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "strings"
)

// OllamaClient is the last-resort locally hosted inference endpoint. It needs
// no credentials and is only consulted when every remote combination failed.
type OllamaClient struct {
    http    *http.Client
    baseURL string
    model   string
}

func NewOllamaClient(baseURL, model string) *OllamaClient {
    return &OllamaClient{http: &http.Client{}, baseURL: strings.TrimSuffix(baseURL, "/"), model: model}
}

func (c *OllamaClient) Name() string { return "ollama" }

type ollamaGenReq struct {
    Model  string `json:"model"`
    Prompt string `json:"prompt"`
    Stream bool   `json:"stream"`
}

type ollamaGenResp struct {
    Response string `json:"response"`
    Done     bool   `json:"done"`
}

func (c *OllamaClient) Do(ctx context.Context, req Request) (Response, error) {
    model := req.Model
    if model == "" {
        model = c.model
    }
    payload := ollamaGenReq{Model: model, Prompt: req.Prompt, Stream: false}
    body, _ := json.Marshal(payload)

    httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
    if err != nil {
        return Response{}, err
    }
    httpReq.Header.Set("Content-Type", "application/json")

    resp, err := c.http.Do(httpReq)
    if err != nil {
        return Response{}, err
    }
    defer resp.Body.Close()

    if resp.StatusCode < 200 || resp.StatusCode >= 300 {
        return Response{}, &HTTPError{Provider: "ollama", StatusCode: resp.StatusCode, Body: fmt.Sprintf("model %s", model)}
    }

    var r ollamaGenResp
    if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
        return Response{}, err
    }
    text := strings.TrimSpace(r.Response)
    if text == "" {
        return Response{}, errors.New("ollama returned empty response")
    }
    return Response{Text: text}, nil
}
