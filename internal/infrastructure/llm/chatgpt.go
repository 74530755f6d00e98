package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"newscollector/internal/config"
	"newscollector/internal/domain"
	"newscollector/internal/ports"
)

// promptTemplate asks for strict JSON with the fixed category and
// sentiment vocabularies.
const promptTemplate = `다음 뉴스 기사를 읽고 반드시 **유효한 JSON만** 출력하세요.
추가 텍스트나 설명은 절대 쓰지 마세요.

## 출력 형식 (필수, 누락 금지)
{"categories": ["카테고리1", "카테고리2"], "sentiment": "감정라벨", "confidence": 0.0, "rationale": "근거 설명 (1~2문장)"}

## 카테고리 후보 (반드시 이 중에서만 선택, 최대 2개)
정치, 사회, 경제, 국제, 문화, 스포츠, IT과학

## 감정 후보 (반드시 이 중에서만 선택)
hope_encourage, anger_criticism, anxiety_crisis, sad_shock, neutral_factual

## 분류할 기사
제목: %s
본문: %s

출력은 반드시 JSON만!`

// classifyBodyChars bounds how much article body goes into the prompt.
const classifyBodyChars = 1500

// ChatGPTClient classifies articles through an OpenAI-compatible chat API.
type ChatGPTClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ ports.Classifier = (*ChatGPTClient)(nil)

// NewChatGPTClient builds a client from configuration.
func NewChatGPTClient(cfg config.TaggerConfig) *ChatGPTClient {
	return &ChatGPTClient{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Classify sends the article to the chat API and parses the JSON verdict.
func (c *ChatGPTClient) Classify(ctx context.Context, title, body string) (domain.Tag, error) {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return domain.Tag{}, fmt.Errorf("chatgpt client misconfigured")
	}

	if runes := []rune(body); len(runes) > classifyBodyChars {
		body = string(runes[:classifyBodyChars])
	}
	prompt := fmt.Sprintf(promptTemplate, title, body)

	payload, err := json.Marshal(map[string]any{
		"model":       c.model,
		"temperature": 0.2,
		"max_tokens":  400,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	})
	if err != nil {
		return domain.Tag{}, fmt.Errorf("marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return domain.Tag{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Tag{}, fmt.Errorf("send classification request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.Tag{}, fmt.Errorf("chatgpt error %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	var chat struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return domain.Tag{}, fmt.Errorf("decode chat response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return domain.Tag{}, fmt.Errorf("chat response has no choices")
	}

	return parseTag(chat.Choices[0].Message.Content)
}

// parseTag decodes the model output, retrying on the outermost brace pair
// when the model wrapped the JSON in extra text.
func parseTag(text string) (domain.Tag, error) {
	text = strings.TrimSpace(text)

	var tag domain.Tag
	if err := json.Unmarshal([]byte(text), &tag); err == nil {
		return withDefaults(tag), nil
	}

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(text[start:end+1]), &tag); err == nil {
			return withDefaults(tag), nil
		}
	}

	return domain.Tag{}, fmt.Errorf("model output is not valid JSON: %.120s", text)
}

func withDefaults(tag domain.Tag) domain.Tag {
	if tag.Sentiment == "" {
		tag.Sentiment = "neutral_factual"
	}
	return tag
}
