package main

import (
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"chapter-relay/pkg/logger"
)

const defaultReply = "Конечно! Вот результат:\n```json\n" + `{
  "type": "chapter_collection",
  "version": 1,
  "chapters": [
    {
      "name": "Глаголы",
      "description": "Глаголы из текста",
      "primaryLanguage": "en",
      "secondaryLanguage": "ru",
      "topics": [
        {"primaryText": "to run", "secondaryText": "бежать"},
        {"primaryText": "to read", "secondaryText": "читать"}
      ]
    }
  ]
}` + "\n```\nУдачи!"

// MockOllama fakes the local model server's chat and tags endpoints.
type MockOllama struct {
	Reply     string
	ChunkSize int
	Delay     time.Duration
	// Noise interleaves blank and malformed lines with the real fragments.
	Noise  bool
	Models []string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatFragment struct {
	Model   string       `json:"model"`
	Message *chatMessage `json:"message,omitempty"`
	Done    bool         `json:"done"`
}

// Chunks splits the reply into fragments of at most ChunkSize runes.
func (m *MockOllama) Chunks() []string {
	size := m.ChunkSize
	if size <= 0 {
		size = 16
	}
	runes := []rune(m.Reply)
	var out []string
	for len(runes) > 0 {
		n := min(size, len(runes))
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	return out
}

// Handler routes /api/chat and /api/tags.
func (m *MockOllama) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.POST("/api/chat", m.handleChat)
	r.GET("/api/tags", m.handleTags)
	return r
}

func (m *MockOllama) handleChat(c *gin.Context) {
	var req struct {
		Model    string        `json:"model"`
		Messages []chatMessage `json:"messages"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	logger.Info("mock chat", "model", req.Model, "messages", len(req.Messages))

	c.Header("Content-Type", "application/x-ndjson")
	c.Status(http.StatusOK)
	w := c.Writer
	enc := json.NewEncoder(w)
	for i, chunk := range m.Chunks() {
		select {
		case <-c.Request.Context().Done():
			return
		case <-time.After(m.Delay):
		}
		if m.Noise && i%3 == 1 {
			_, _ = w.WriteString("\n{\"model\": broken\n")
		}
		_ = enc.Encode(chatFragment{
			Model:   req.Model,
			Message: &chatMessage{Role: "assistant", Content: chunk},
		})
		w.Flush()
	}
	_ = enc.Encode(chatFragment{Model: req.Model, Done: true})
	w.Flush()
}

func (m *MockOllama) handleTags(c *gin.Context) {
	models := make([]gin.H, 0, len(m.Models))
	for _, name := range m.Models {
		models = append(models, gin.H{"name": name})
	}
	c.JSON(http.StatusOK, gin.H{"models": models})
}

func main() {
	addr := flag.String("addr", "127.0.0.1:11434", "listen address")
	delay := flag.Duration("delay", 50*time.Millisecond, "delay between fragments")
	noise := flag.Bool("noise", false, "interleave malformed lines")
	replyFile := flag.String("reply", "", "file whose content is streamed instead of the built-in reply")
	flag.Parse()

	reply := defaultReply
	if *replyFile != "" {
		data, err := os.ReadFile(*replyFile)
		if err != nil {
			logger.Fatalf("Mock reply unreadable: %v", err)
		}
		reply = string(data)
	}

	gin.SetMode(gin.ReleaseMode)
	mock := &MockOllama{Reply: reply, Delay: *delay, Noise: *noise, Models: []string{"llama3:latest"}}
	logger.Info("starting mock local model server", "addr", *addr, "noise", *noise)
	if err := http.ListenAndServe(*addr, mock.Handler()); err != nil {
		logger.Fatalf("Mock Server stopped: %v", err)
	}
}
