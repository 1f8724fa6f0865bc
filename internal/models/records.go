package models

// Player is a game participant
type Player struct {
	Base
	Name   string `json:"name" gorm:"not null"`
	Score  int64  `json:"score" gorm:"not null"`
	Level  int64  `json:"level" gorm:"not null"`
	Online bool   `json:"online" gorm:"not null"`
}

// TableName returns the table name for Player
func (Player) TableName() string {
	return "game_players"
}

// Note is a short text note
type Note struct {
	Base
	Title  string `json:"title" gorm:"not null"`
	Body   string `json:"body" gorm:"type:text"`
	Pinned bool   `json:"pinned" gorm:"not null"`
}

// TableName returns the table name for Note
func (Note) TableName() string {
	return "notes_notes"
}

// PlayerType is the accessor table for game/Player
var PlayerType = NewRecordType("game", "Player", func() Record { return &Player{} },
	StringField("name", func(r Record) *string { return &r.(*Player).Name }),
	IntField("score", func(r Record) *int64 { return &r.(*Player).Score }),
	IntField("level", func(r Record) *int64 { return &r.(*Player).Level }),
	BoolField("online", func(r Record) *bool { return &r.(*Player).Online }),
)

// NoteType is the accessor table for notes/Note
var NoteType = NewRecordType("notes", "Note", func() Record { return &Note{} },
	StringField("title", func(r Record) *string { return &r.(*Note).Title }),
	StringField("body", func(r Record) *string { return &r.(*Note).Body }),
	BoolField("pinned", func(r Record) *bool { return &r.(*Note).Pinned }),
)

// DefaultSchema returns the record types served out of the box
func DefaultSchema() *Schema {
	return NewSchema(PlayerType, NoteType)
}
