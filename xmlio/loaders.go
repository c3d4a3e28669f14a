// Package xmlio wires a host's raw byte-level file access
// (xmltree.PathResolver/FileLoader) into the decoded-text form
// doc()/collection()/unparsed-text() need (spec §4.B, §6.1). Building a
// Document out of those bytes is an XML parser's job and stays out of
// scope (spec §1); this package only carries bytes to well-formed UTF-8
// text and gives loader failures a stack trace.
package xmlio

import (
	"github.com/pkg/errors"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/parasol-framework/xpathql/xmltree"
)

// DecodeText converts raw bytes in the given (possibly empty) IANA
// encoding name to UTF-8. An empty name is treated as "already UTF-8".
// Unknown encoding names fall back to passing the bytes through
// unchanged rather than failing unparsed-text() outright.
func DecodeText(data []byte, declaredEncoding string) (string, error) {
	if declaredEncoding == "" {
		return string(data), nil
	}
	enc, err := htmlindex.Get(declaredEncoding)
	if err != nil {
		return string(data), nil
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", errors.Wrapf(err, "decoding as %s", declaredEncoding)
	}
	return string(out), nil
}

// WrapLoaders builds an xmltree.Loaders whose FileLoader decodes fetched
// bytes to UTF-8 per declaredEncoding before returning them, and wraps
// any read failure with a stack trace via github.com/pkg/errors so a
// host's top-level error log shows where the fetch actually failed.
func WrapLoaders(resolve xmltree.PathResolver, read xmltree.FileLoader, regex xmltree.RegexEngine, declaredEncoding string) *xmltree.Loaders {
	wrapped := func(path string) ([]byte, error) {
		data, err := read(path)
		if err != nil {
			return nil, errors.Wrapf(err, "xmlio: reading %s", path)
		}
		if data == nil {
			return nil, nil
		}
		text, err := DecodeText(data, declaredEncoding)
		if err != nil {
			return nil, errors.Wrapf(err, "xmlio: decoding %s", path)
		}
		return []byte(text), nil
	}
	return &xmltree.Loaders{Resolve: resolve, Read: wrapped, Regex: regex}
}
