// Package schemaregistry checks Avro key/value schema compatibility for
// the Store Lifecycle Engine's addValueSchema path (spec.md §4.1/§4.5).
// Grounded on axonops-axonops-schema-registry's
// internal/compatibility/avro/checker.go: same hamba/avro/v2 parse-then-
// recursively-compare structure, trimmed to the checks Venice's single
// BACKWARD-compatibility policy needs (full reader/writer union and
// reference-schema handling is out of scope; Venice schemas are
// standalone, not composed via $ref).
package schemaregistry

import (
	"fmt"

	"github.com/hamba/avro/v2"
)

// Result is the outcome of a compatibility check.
type Result struct {
	Compatible bool
	Messages   []string
}

func newCompatible() *Result   { return &Result{Compatible: true} }
func newIncompatible(msg string) *Result {
	return &Result{Compatible: false, Messages: []string{msg}}
}

func (r *Result) add(format string, args ...interface{}) {
	r.Compatible = false
	r.Messages = append(r.Messages, fmt.Sprintf(format, args...))
}

func (r *Result) merge(other *Result) {
	if !other.Compatible {
		r.Compatible = false
		r.Messages = append(r.Messages, other.Messages...)
	}
}

// Checker checks BACKWARD compatibility between a new (reader) schema and
// each prior (writer) schema already registered for a store.
type Checker struct{}

func NewChecker() *Checker { return &Checker{} }

// CheckBackward checks that newSchemaText can read data written with
// oldSchemaText (spec.md §4.1's schema compatibility check for
// addValueSchema).
func (c *Checker) CheckBackward(newSchemaText, oldSchemaText string) *Result {
	reader, err := avro.Parse(newSchemaText)
	if err != nil {
		return newIncompatible(fmt.Sprintf("invalid new schema: %v", err))
	}
	writer, err := avro.Parse(oldSchemaText)
	if err != nil {
		return newIncompatible(fmt.Sprintf("invalid existing schema: %v", err))
	}
	return c.check(reader, writer, "")
}

func (c *Checker) check(reader, writer avro.Schema, path string) *Result {
	if c.canPromote(writer, reader) {
		return newCompatible()
	}

	if reader.Type() != writer.Type() {
		if reader.Type() == avro.Union {
			return c.checkReaderUnion(reader.(*avro.UnionSchema), writer, path)
		}
		if writer.Type() == avro.Union {
			return c.checkWriterUnion(reader, writer.(*avro.UnionSchema), path)
		}
		return newIncompatible(fmt.Sprintf("%s: type mismatch: new has %s, existing has %s", pathOrRoot(path), reader.Type(), writer.Type()))
	}

	switch reader.Type() {
	case avro.Record:
		return c.checkRecord(reader.(*avro.RecordSchema), writer.(*avro.RecordSchema), path)
	case avro.Enum:
		return c.checkEnum(reader.(*avro.EnumSchema), writer.(*avro.EnumSchema), path)
	case avro.Array:
		return c.check(reader.(*avro.ArraySchema).Items(), writer.(*avro.ArraySchema).Items(), path+"[]")
	case avro.Map:
		return c.check(reader.(*avro.MapSchema).Values(), writer.(*avro.MapSchema).Values(), path+"{}")
	case avro.Fixed:
		return c.checkFixed(reader.(*avro.FixedSchema), writer.(*avro.FixedSchema), path)
	default:
		return newCompatible()
	}
}

func (c *Checker) checkRecord(reader, writer *avro.RecordSchema, path string) *Result {
	result := newCompatible()
	if reader.FullName() != writer.FullName() {
		result.add("%s: record name mismatch: new has %s, existing has %s", pathOrRoot(path), reader.FullName(), writer.FullName())
		return result
	}

	writerFields := make(map[string]*avro.Field, len(writer.Fields()))
	for _, f := range writer.Fields() {
		writerFields[f.Name()] = f
	}

	for _, rf := range reader.Fields() {
		wf, exists := writerFields[rf.Name()]
		if !exists {
			if !rf.HasDefault() {
				result.add("%s: new field '%s' has no default and is missing from existing schema", pathOrRoot(path), rf.Name())
			}
			continue
		}
		result.merge(c.check(rf.Type(), wf.Type(), appendPath(path, rf.Name())))
	}
	return result
}

func (c *Checker) checkEnum(reader, writer *avro.EnumSchema, path string) *Result {
	result := newCompatible()
	if reader.FullName() != writer.FullName() {
		result.add("%s: enum name mismatch: new has %s, existing has %s", pathOrRoot(path), reader.FullName(), writer.FullName())
		return result
	}
	readerSymbols := make(map[string]bool, len(reader.Symbols()))
	for _, s := range reader.Symbols() {
		readerSymbols[s] = true
	}
	for _, ws := range writer.Symbols() {
		if !readerSymbols[ws] {
			result.add("%s: existing enum symbol '%s' missing from new schema", pathOrRoot(path), ws)
		}
	}
	return result
}

func (c *Checker) checkFixed(reader, writer *avro.FixedSchema, path string) *Result {
	result := newCompatible()
	if reader.Size() != writer.Size() {
		result.add("%s: fixed size mismatch: new has %d, existing has %d", pathOrRoot(path), reader.Size(), writer.Size())
	}
	return result
}

func (c *Checker) checkReaderUnion(reader *avro.UnionSchema, writer avro.Schema, path string) *Result {
	for _, rt := range reader.Types() {
		if c.check(rt, writer, path).Compatible {
			return newCompatible()
		}
	}
	return newIncompatible(fmt.Sprintf("%s: existing type %s not compatible with any type in new union", pathOrRoot(path), writer.Type()))
}

func (c *Checker) checkWriterUnion(reader avro.Schema, writer *avro.UnionSchema, path string) *Result {
	for _, wt := range writer.Types() {
		if !c.check(reader, wt, path).Compatible {
			return newIncompatible(fmt.Sprintf("%s: new type %s cannot read existing union member %s", pathOrRoot(path), reader.Type(), wt.Type()))
		}
	}
	return newCompatible()
}

// canPromote reports whether a writer type can be widened to a reader
// type under Avro's promotion rules.
func (c *Checker) canPromote(writer, reader avro.Schema) bool {
	switch writer.Type() {
	case avro.Int:
		return reader.Type() == avro.Long || reader.Type() == avro.Float || reader.Type() == avro.Double
	case avro.Long:
		return reader.Type() == avro.Float || reader.Type() == avro.Double
	case avro.Float:
		return reader.Type() == avro.Double
	case avro.String:
		return reader.Type() == avro.Bytes
	case avro.Bytes:
		return reader.Type() == avro.String
	}
	return false
}

func pathOrRoot(path string) string {
	if path == "" {
		return "root"
	}
	return path
}

func appendPath(path, segment string) string {
	if path == "" {
		return segment
	}
	return path + "." + segment
}
