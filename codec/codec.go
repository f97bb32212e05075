// Package codec converts values to and from the strings kept in the store.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v4"
)

// Codec must round-trip every value type callers store.
type Codec interface {
	Marshal(v interface{}) (string, error)
	Unmarshal(data string, v interface{}) error
}

// JSON is the default codec.
type JSON struct{}

func (JSON) Marshal(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (JSON) Unmarshal(data string, v interface{}) error {
	return json.Unmarshal([]byte(data), v)
}

// Msgpack stores values in MessagePack. The stored strings are binary, so
// INCRBY and friends only work on keys written by JSON.
type Msgpack struct{}

func (Msgpack) Marshal(v interface{}) (string, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (Msgpack) Unmarshal(data string, v interface{}) error {
	return msgpack.Unmarshal([]byte(data), v)
}

// ByName resolves a configured codec name.
func ByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSON{}, nil
	case "msgpack":
		return Msgpack{}, nil
	}
	return nil, fmt.Errorf("unknown codec %q", name)
}
