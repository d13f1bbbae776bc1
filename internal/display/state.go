package display

import (
	"bytes"
	"encoding/gob"

	"github.com/hoppla20/gbemu-go/internal/emu"
)

func encodeState(s *emu.SaveState) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeState(data []byte) (*emu.SaveState, error) {
	var s emu.SaveState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}
