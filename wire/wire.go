// Package wire implements reflection driven marshaling and unmarshaling of
// fixed-width big-endian structs, as used by batch headers. Struct fields are
// walked in declaration order; unexported fields and fields tagged
// `wire:"omit"` are skipped. Supported field kinds are int8, int16, int32,
// int64, uint32, and []byte (length-prefixed with an int32, nil marshals as
// length -1).
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"reflect"
)

var ord = binary.BigEndian

func skip(f reflect.StructField) bool {
	return !f.IsExported() || f.Tag.Get("wire") == "omit"
}

func Write(w io.Writer, val reflect.Value) error {
	switch val.Kind() {
	case reflect.Ptr, reflect.Interface:
		return Write(w, val.Elem())
	case reflect.Struct:
		for i := 0; i < val.NumField(); i++ {
			if skip(val.Type().Field(i)) {
				continue
			}
			if err := Write(w, val.Field(i)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Slice:
		if val.Type().Elem().Kind() != reflect.Uint8 {
			return fmt.Errorf("unsupported slice type: %v", val.Type())
		}
		if val.IsNil() {
			return binary.Write(w, ord, int32(-1))
		}
		if err := binary.Write(w, ord, int32(val.Len())); err != nil {
			return err
		}
		_, err := w.Write(val.Bytes())
		return err
	case reflect.Int8:
		return binary.Write(w, ord, int8(val.Int()))
	case reflect.Int16:
		return binary.Write(w, ord, int16(val.Int()))
	case reflect.Int32:
		return binary.Write(w, ord, int32(val.Int()))
	case reflect.Int64:
		return binary.Write(w, ord, val.Int())
	case reflect.Uint32:
		return binary.Write(w, ord, uint32(val.Uint()))
	}
	return fmt.Errorf("unsupported kind: %v", val.Kind())
}

func Read(r io.Reader, val reflect.Value) error {
	switch val.Kind() {
	case reflect.Ptr, reflect.Interface:
		return Read(r, val.Elem())
	case reflect.Struct:
		for i := 0; i < val.NumField(); i++ {
			if skip(val.Type().Field(i)) {
				continue
			}
			if err := Read(r, val.Field(i)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Slice:
		if val.Type().Elem().Kind() != reflect.Uint8 {
			return fmt.Errorf("unsupported slice type: %v", val.Type())
		}
		var n int32
		if err := binary.Read(r, ord, &n); err != nil {
			return fmt.Errorf("error reading []byte length: %v", err)
		}
		if n < 0 {
			return nil // nil slice
		}
		b := make([]byte, n)
		if _, err := io.ReadFull(r, b); err != nil {
			return fmt.Errorf("error reading []byte body: %v", err)
		}
		val.SetBytes(b)
		return nil
	case reflect.Int8:
		var i int8
		if err := binary.Read(r, ord, &i); err != nil {
			return fmt.Errorf("error reading int8: %v", err)
		}
		val.SetInt(int64(i))
		return nil
	case reflect.Int16:
		var i int16
		if err := binary.Read(r, ord, &i); err != nil {
			return fmt.Errorf("error reading int16: %v", err)
		}
		val.SetInt(int64(i))
		return nil
	case reflect.Int32:
		var i int32
		if err := binary.Read(r, ord, &i); err != nil {
			return fmt.Errorf("error reading int32: %v", err)
		}
		val.SetInt(int64(i))
		return nil
	case reflect.Int64:
		var i int64
		if err := binary.Read(r, ord, &i); err != nil {
			return fmt.Errorf("error reading int64: %v", err)
		}
		val.SetInt(i)
		return nil
	case reflect.Uint32:
		var i uint32
		if err := binary.Read(r, ord, &i); err != nil {
			return fmt.Errorf("error reading uint32: %v", err)
		}
		val.SetUint(uint64(i))
		return nil
	}
	return fmt.Errorf("unsupported kind: %v", val.Kind())
}
