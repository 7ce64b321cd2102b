package domain

type MediaKind string

const (
	MediaPhoto     MediaKind = "photo"
	MediaDocument  MediaKind = "document"
	MediaVideo     MediaKind = "video"
	MediaAnimation MediaKind = "animation"
)

// Media is an attachment re-sent by reference; FileID is the platform handle.
type Media struct {
	Kind   MediaKind
	FileID string
}
