package collector

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/tidwall/gjson"
	"github.com/zvdy/clustermeta/src/models"
	"golang.org/x/net/html/charset"
)

var utf8BOM = []byte("\xef\xbb\xbf")

type extractAttempt struct {
	format  string
	extract func(payload []byte) ([]models.ConfigProperty, error)
}

// extractAttempts are tried in order; the first that succeeds wins
var extractAttempts = []extractAttempt{
	{format: "json", extract: extractJSON},
	{format: "xml", extract: extractXML},
}

// ExtractProperties parses a /conf payload into its properties in document order.
// The payload is read as a JSON object with a "properties" array, falling back to
// Hadoop-style XML. contentType is only used to describe failures.
func ExtractProperties(payload []byte, contentType string) ([]models.ConfigProperty, error) {
	payload = bytes.TrimPrefix(payload, utf8BOM)

	var errs error
	for _, attempt := range extractAttempts {
		props, err := attempt.extract(payload)
		if err == nil {
			return props, nil
		}
		errs = multierror.Append(errs, fmt.Errorf("%s: %w", attempt.format, err))
	}
	return nil, fmt.Errorf("%w (content type %q): %v", ErrParse, contentType, errs)
}

func extractJSON(payload []byte) ([]models.ConfigProperty, error) {
	if !gjson.ValidBytes(payload) {
		return nil, errors.New("invalid json")
	}
	root := gjson.ParseBytes(payload)
	if !root.IsObject() {
		return nil, errors.New("json root is not an object")
	}

	props := []models.ConfigProperty{}
	list := root.Get("properties")
	if !list.Exists() || list.Type == gjson.Null {
		return props, nil
	}
	if !list.IsArray() {
		return nil, errors.New(`"properties" is not an array`)
	}

	list.ForEach(func(_, item gjson.Result) bool {
		if item.IsObject() {
			props = append(props, models.ConfigProperty{
				Key:   item.Get("key").String(),
				Value: item.Get("value").String(),
			})
		}
		return true
	})
	return props, nil
}

// xmlNode is a generic element tree
type xmlNode struct {
	XMLName  xml.Name
	Text     string    `xml:",chardata"`
	Children []xmlNode `xml:",any"`
}

func (n *xmlNode) child(name string) (*xmlNode, bool) {
	for i := range n.Children {
		if n.Children[i].XMLName.Local == name {
			return &n.Children[i], true
		}
	}
	return nil, false
}

// extractXML maps every child of the root that has <name> and <value> elements to a property
func extractXML(payload []byte) ([]models.ConfigProperty, error) {
	dec := xml.NewDecoder(bytes.NewReader(payload))
	dec.CharsetReader = charset.NewReaderLabel

	var root xmlNode
	if err := dec.Decode(&root); err != nil {
		return nil, err
	}
	if err := expectEOF(dec); err != nil {
		return nil, err
	}

	props := []models.ConfigProperty{}
	for i := range root.Children {
		name, ok := root.Children[i].child("name")
		if !ok {
			continue
		}
		value, ok := root.Children[i].child("value")
		if !ok {
			continue
		}
		props = append(props, models.ConfigProperty{
			Key:   strings.TrimSpace(name.Text),
			Value: strings.TrimSpace(value.Text),
		})
	}
	return props, nil
}

// expectEOF rejects anything but whitespace, comments and processing instructions after the root element
func expectEOF(dec *xml.Decoder) error {
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return errors.New("text after root element")
			}
		case xml.Comment, xml.ProcInst:
		default:
			return fmt.Errorf("unexpected %T after root element", tok)
		}
	}
}
