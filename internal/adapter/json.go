package adapter

import (
	json "github.com/goccy/go-json"
)

// JSON encodes reward events and airdrop criteria
//
//go:generate mockgen -source=json.go -destination=../mocks/json.go -package=mocks -mock_names=JSON=MockJSON
type JSON interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// GoJSON implements JSON with goccy/go-json, a drop-in encoding/json replacement
type GoJSON struct{}

// NewJSON creates the JSON codec
func NewJSON() JSON {
	return &GoJSON{}
}

func (j *GoJSON) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (j *GoJSON) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
