package container

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// DumpFormat is the value of the "format" key every object dump starts with.
const DumpFormat = "unity-object-dump"

// Signatures of Unity binary containers. These are recognised only so the
// warning for a missing dump can name what the file is.
var signatures = []string{"UnityFS", "UnityWeb", "UnityRaw", "UnityArchive"}

// DumpOpener reads the JSON object dump written by the binary parser:
//
//	{"format": "unity-object-dump", "units": [{"name": ..., "objects": [...]}, ...]}
//
// Units are decoded one at a time so a large dump is never held in memory.
type DumpOpener struct{}

// Open implements Opener.
func (DumpOpener) Open(path string) (Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReaderSize(f, 64*1024)
	head, _ := br.Peek(16)
	for _, sig := range signatures {
		if bytes.HasPrefix(head, []byte(sig)) {
			f.Close()
			return nil, fmt.Errorf("%w: %s archive needs an object dump", ErrUnrecognized, sig)
		}
	}

	dec := json.NewDecoder(br)
	if err := readHeader(dec); err != nil {
		f.Close()
		return nil, err
	}

	return &dumpContainer{file: f, dec: dec}, nil
}

func readHeader(dec *json.Decoder) error {
	if err := expectDelim(dec, '{'); err != nil {
		return fmt.Errorf("%w: %v", ErrUnrecognized, err)
	}
	key, err := dec.Token()
	if err != nil || key != "format" {
		return fmt.Errorf("%w: missing format key", ErrUnrecognized)
	}
	var format string
	if err := dec.Decode(&format); err != nil || format != DumpFormat {
		return fmt.Errorf("%w: format %q", ErrUnrecognized, format)
	}
	return nil
}

type dumpContainer struct {
	file   *os.File
	dec    *json.Decoder
	walked bool
}

func (c *dumpContainer) Walk(fn func(*Unit) error) error {
	if c.walked {
		return errors.New("container already walked")
	}
	c.walked = true

	for c.dec.More() {
		tok, err := c.dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		if key != "units" {
			// unknown keys are skipped
			var skip json.RawMessage
			if err := c.dec.Decode(&skip); err != nil {
				return err
			}
			continue
		}

		if err := expectDelim(c.dec, '['); err != nil {
			return err
		}
		for c.dec.More() {
			var u Unit
			if err := c.dec.Decode(&u); err != nil {
				return fmt.Errorf("decode unit: %w", err)
			}
			if err := fn(&u); err != nil {
				return err
			}
		}
		if err := expectDelim(c.dec, ']'); err != nil {
			return err
		}
	}
	return nil
}

func (c *dumpContainer) Close() error {
	return c.file.Close()
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

// WriteDump writes units in the object dump format read by DumpOpener.
func WriteDump(path string, units []Unit) error {
	doc := struct {
		Format string `json:"format"`
		Units  []Unit `json:"units"`
	}{Format: DumpFormat, Units: units}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
