// Command openai-stub serves a deterministic OpenAI-compatible API for local
// runs of goarticle without a real model.
package main

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	model := os.Getenv("MODEL_ID")
	if strings.TrimSpace(model) == "" {
		model = "test-model"
	}
	addr := os.Getenv("ADDR")
	if strings.TrimSpace(addr) == "" {
		addr = ":8081"
	}

	log.Info().Str("addr", addr).Str("model", model).Msg("openai-stub listening")
	if err := http.ListenAndServe(addr, newMux(model)); err != nil {
		log.Fatal().Err(err).Msg("serve")
	}
}

func newMux(model string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": model, "object": "model"}},
		})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		content, ok := reply(req)
		if !ok {
			http.Error(w, "unexpected system", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": req.Model,
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	})
	return mux
}

// reply picks a canned answer by the system prompt.
func reply(req chatRequest) (string, bool) {
	var sys, user string
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			sys = m.Content
		case "user":
			user = m.Content
		}
	}
	switch {
	case strings.Contains(sys, "translator"):
		// Echo paragraph count so callers can see the input made it through
		paragraphs := 0
		for _, p := range strings.Split(user, "\n\n") {
			if strings.TrimSpace(p) != "" {
				paragraphs++
			}
		}
		var sb strings.Builder
		for i := 1; i < paragraphs; i++ {
			if i > 1 {
				sb.WriteString("\n\n")
			}
			sb.WriteString("这是译文的一个段落。")
		}
		if sb.Len() == 0 {
			sb.WriteString("这是译文。")
		}
		return sb.String(), true
	case strings.Contains(sys, "expert writer"):
		return "这篇文章让我想起一个问题。\n\n### 第一点\n\n观点、论据与边界。\n\n### 第二点\n\n观点、论据与边界。\n\n### 第三点\n\n观点、论据与边界。\n\n1. 试着做一件小事。\n2. 问问自己为什么。\n3. 与朋友讨论。", true
	}
	return "", false
}
