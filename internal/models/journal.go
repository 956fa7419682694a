package models

import (
	"strings"
	"time"
)

// Emotion is a named mood label; names are unique ignoring case.
type Emotion struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Tag is a free-form label attached to memories through memory_tags.
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Memory represents a single journal entry owned by one user
type Memory struct {
	ID          int64     `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	UserID      int64     `json:"user_id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Date        time.Time `json:"date"`
	EmotionID   *int64    `json:"emotion_id,omitempty"`
	EmotionName string    `json:"emotion_name,omitempty"`
	ImagePath   string    `json:"image_path,omitempty"`
	AudioPath   string    `json:"audio_path,omitempty"`
	Tags        []Tag     `json:"tags"`
}

// MemorySummary is one dashboard row: a memory joined with its emotion name and tag names.
type MemorySummary struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Date        time.Time `json:"date"`
	EmotionID   *int64    `json:"emotion_id,omitempty"`
	EmotionName string    `json:"emotion_name"`
	Emoji       string    `json:"emoji,omitempty"`
	TagList     string    `json:"tag_list"`
	ImagePath   string    `json:"image_path,omitempty"`
	AudioPath   string    `json:"audio_path,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	AudioURL    string    `json:"audio_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// MemoryFilter narrows a dashboard listing. Empty fields impose no constraint; set fields AND together.
type MemoryFilter struct {
	Search  string `json:"search,omitempty"`
	Emotion string `json:"emotion,omitempty"`
	Tag     string `json:"tag,omitempty"`
}

var emotionEmoji = map[string]string{
	"joy":       "😊",
	"happy":     "😄",
	"sad":       "😢",
	"angry":     "😠",
	"calm":      "😌",
	"love":      "❤️",
	"fear":      "😨",
	"excited":   "🤩",
	"grateful":  "🙏",
	"anxious":   "😰",
	"nostalgic": "🥹",
}

// EmojiFor returns the display emoji for well-known emotion names, or "".
func EmojiFor(emotion string) string {
	return emotionEmoji[strings.ToLower(strings.TrimSpace(emotion))]
}
