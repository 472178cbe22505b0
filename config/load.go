package config

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Load reads the document at path and decodes it into a record of type R.
// It either returns a fully populated record or the zero value and an *Error.
// Every call reads the file again.
func Load[R Record](path string) (R, error) {
	var rec R

	data, err := read(path)
	if err != nil {
		err.Doc = rec.Kind()
		return rec, err
	}

	if err := decode(data, &rec); err != nil {
		var zero R
		return zero, &Error{Kind: Malformed, Doc: rec.Kind(), Path: path, Err: err}
	}
	log.Debugf("Loaded %s config from %s", rec.Kind(), path)

	return rec, nil
}

// read reads a configuration document from the filesystem
func read(path string) ([]byte, *Error) {
	f, err := os.Open(path)
	if err != nil {
		kind := Unreadable
		if os.IsNotExist(err) {
			kind = NotFound
		}
		return nil, &Error{Kind: kind, Path: path, Err: errors.Wrap(err, "failed to open config file")}
	}
	defer f.Close()

	data, err := ioutil.ReadAll(f)
	if err != nil {
		return nil, &Error{Kind: Unreadable, Path: path, Err: errors.Wrap(err, "failed to read config file")}
	}

	return data, nil
}

// decode checks that data holds every field of rec as a JSON string before
// decoding it into rec. rec is left untouched when the shape does not match.
func decode(data []byte, rec interface{}) error {
	fields := map[string]json.RawMessage{}
	err := json.Unmarshal(data, &fields)
	if err != nil {
		return errors.Wrap(err, "failed to parse config document")
	}

	bad := invalidFields(reflect.TypeOf(rec).Elem(), fields)
	if len(bad) > 0 {
		return errors.Errorf("missing or non-string fields: %s", strings.Join(bad, ", "))
	}

	err = json.Unmarshal(data, rec)
	if err != nil {
		return errors.Wrap(err, "failed to decode config document")
	}

	return nil
}

// invalidFields returns the json names of the struct fields of t that are
// absent from fields or not JSON strings
func invalidFields(t reflect.Type, fields map[string]json.RawMessage) []string {
	bad := []string{}
	for i := 0; i < t.NumField(); i++ {
		name := strings.Split(t.Field(i).Tag.Get("json"), ",")[0]
		if name == "" || name == "-" {
			continue
		}
		raw, ok := fields[name]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			bad = append(bad, name)
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) != nil {
			bad = append(bad, name)
		}
	}
	sort.Strings(bad)

	return bad
}
