package rpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

const itemsField = "items"

// toStruct carries v across the wire through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%T is not an object: %w", v, err)
	}
	return structpb.NewStruct(m)
}

func fromStruct(s *structpb.Struct, v any) error {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// listStruct wraps a slice as {"items": [...]}.
func listStruct[T any](items []T) (*structpb.Struct, error) {
	if items == nil {
		items = []T{}
	}
	return toStruct(map[string][]T{itemsField: items})
}

func fromListStruct[T any](s *structpb.Struct) ([]T, error) {
	var body map[string][]T
	if err := fromStruct(s, &body); err != nil {
		return nil, err
	}
	return body[itemsField], nil
}
