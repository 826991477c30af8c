package criteria

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Node is a parsed filter-expression node. Expressions are parsed once
// into this tree and then compiled against a model; parsing knows nothing
// about models, so relation-vs-field classification happens at compile
// time where the current model is in scope.
type Node interface {
	isNode()
}

// Object is an ordered key→sub-expression mapping. Order is preserved
// from the input document because logical folding and field carry-forward
// depend on traversal order.
type Object struct {
	Pairs []Pair
}

// Pair is one key→value entry of an Object.
type Pair struct {
	Key   string
	Value Node
}

// Scalar is a leaf value: string, number, bool or null.
type Scalar struct {
	Value interface{}
}

// List is an array of leaf values or objects.
type List struct {
	Items []Node
}

func (Object) isNode() {}
func (Scalar) isNode() {}
func (List) isNode()   {}

// ParseFilter decodes a raw filter document into an expression tree.
// Malformed JSON is the only error condition; semantic problems (unknown
// operators, unknown fields) are deferred to compilation, which fails
// open. An empty document parses to nil.
func ParseFilter(raw []byte) (Node, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	node, err := parseNode(dec)
	if err != nil {
		return nil, fmt.Errorf("criteria: invalid filter: %w", err)
	}

	// Trailing content after the document is malformed input.
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("criteria: invalid filter: trailing data")
	}
	return node, nil
}

func parseNode(dec *json.Decoder) (Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return parseValue(dec, tok)
}

func parseValue(dec *json.Decoder, tok json.Token) (Node, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return parseObject(dec)
		case '[':
			return parseList(dec)
		default:
			return nil, fmt.Errorf("unexpected %q", t)
		}
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Scalar{Value: i}, nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, err
		}
		return Scalar{Value: f}, nil
	default:
		// string, bool or nil
		return Scalar{Value: t}, nil
	}
}

func parseObject(dec *json.Decoder) (Node, error) {
	obj := Object{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", keyTok)
		}
		val, err := parseNode(dec)
		if err != nil {
			return nil, err
		}
		obj.Pairs = append(obj.Pairs, Pair{Key: key, Value: val})
	}
	// consume closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

func parseList(dec *json.Decoder) (Node, error) {
	list := List{}
	for dec.More() {
		item, err := parseNode(dec)
		if err != nil {
			return nil, err
		}
		list.Items = append(list.Items, item)
	}
	// consume closing ']'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return list, nil
}

// scalarValues flattens a node into raw values: a Scalar yields one, a
// List yields its scalar items. Objects yield nothing.
func scalarValues(n Node) []interface{} {
	switch v := n.(type) {
	case Scalar:
		return []interface{}{v.Value}
	case List:
		out := make([]interface{}, 0, len(v.Items))
		for _, item := range v.Items {
			if s, ok := item.(Scalar); ok {
				out = append(out, s.Value)
			}
		}
		return out
	default:
		return nil
	}
}

// isEmpty reports whether a node carries no constraints at all.
func isEmpty(n Node) bool {
	switch v := n.(type) {
	case nil:
		return true
	case Object:
		return len(v.Pairs) == 0
	case List:
		return len(v.Items) == 0
	case Scalar:
		return v.Value == nil || v.Value == ""
	default:
		return false
	}
}
