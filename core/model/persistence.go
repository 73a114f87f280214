package model

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"

	ftErrors "github.com/TomFinley/machinelearning/pkg/errors"
)

// SaveModel gob-encodes model into filename.
func SaveModel(model interface{}, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return ftErrors.Wrap(err, "failed to create file")
	}
	defer file.Close()

	return SaveModelToWriter(model, file)
}

// LoadModel decodes filename into model, which must be a pointer.
func LoadModel(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return ftErrors.Wrap(err, "failed to open file")
	}
	defer file.Close()

	return LoadModelFromReader(model, file)
}

// SaveModelToWriter gob-encodes model into w.
func SaveModelToWriter(model interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(model); err != nil {
		return ftErrors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader decodes a gob-encoded model from r.
func LoadModelFromReader(model interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(model); err != nil {
		return ftErrors.Wrap(err, "failed to decode model")
	}
	return nil
}

// VersionInfo identifies a persisted model format.
//
// VerWrittenCur is the version this build writes. VerReadableCur is the
// oldest reader version able to read what this build writes.
// VerWeCanReadBack is the oldest written version this build can still load.
type VersionInfo struct {
	ModelSignature   string
	VerWrittenCur    uint32
	VerReadableCur   uint32
	VerWeCanReadBack uint32
}

// header is the first gob value of a versioned stream.
type header struct {
	Signature string
	Written   uint32
	Readable  uint32
}

// SaveVersioned writes a version header followed by payload.
func SaveVersioned(w io.Writer, info VersionInfo, payload interface{}) error {
	enc := gob.NewEncoder(w)
	h := header{Signature: info.ModelSignature, Written: info.VerWrittenCur, Readable: info.VerReadableCur}
	if err := enc.Encode(&h); err != nil {
		return ftErrors.Wrap(err, "failed to encode model header")
	}
	if err := enc.Encode(payload); err != nil {
		return ftErrors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadVersioned reads a stream written by SaveVersioned into payload after
// checking the header against info. It returns the written version.
func LoadVersioned(r io.Reader, info VersionInfo, payload interface{}) (uint32, error) {
	dec := gob.NewDecoder(r)
	var h header
	if err := dec.Decode(&h); err != nil {
		return 0, ftErrors.Wrap(err, "failed to decode model header")
	}
	if err := info.Check(h.Signature, h.Written, h.Readable); err != nil {
		return h.Written, err
	}
	if err := dec.Decode(payload); err != nil {
		return h.Written, ftErrors.Wrap(err, "failed to decode model")
	}
	return h.Written, nil
}

// Check validates a stored header.
func (info VersionInfo) Check(signature string, written, readable uint32) error {
	switch {
	case signature != info.ModelSignature:
		return ftErrors.NewVersionError(signature, written, readable,
			fmt.Sprintf("signature mismatch, expected %q", info.ModelSignature))
	case written < info.VerWeCanReadBack:
		return ftErrors.NewVersionError(signature, written, readable, "model is too old to be read")
	case readable > info.VerWrittenCur:
		return ftErrors.NewVersionError(signature, written, readable, "model requires a newer reader")
	}
	return nil
}
