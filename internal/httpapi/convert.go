package httpapi

import (
	"encoding/json"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/types"
)

// snapshotToProto encodes a snapshot as a google.protobuf.Struct with the
// same field names as the JSON body.
func snapshotToProto(snap types.Snapshot) (*structpb.Struct, error) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}
