package weft

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
)

// binder decodes a request body into a provided type based on the request's
// method and "Content-Type" header.
type binder struct {
	a *Weft
}

// newBinder returns a pointer of a new instance of the `binder` with the a.
func newBinder(a *Weft) *binder {
	return &binder{a: a}
}

// Bind decodes the body (or, for a GET request, the query string) of req
// into v.
func (b *binder) Bind(v interface{}, req *Request) error {
	if req.Method == "GET" {
		return b.bindData(v, req.URL.Query(), "query")
	} else if req.Body == nil {
		return errors.New("weft: request body can't be empty")
	}

	ct := req.Header.Get("Content-Type")

	switch {
	case strings.HasPrefix(ct, "application/json"):
		if err := json.NewDecoder(req.Body).Decode(v); err != nil {
			return fmt.Errorf("weft: failed to decode json body: %w", err)
		}

		return nil
	case strings.HasPrefix(ct, "application/xml"):
		if err := xml.NewDecoder(req.Body).Decode(v); err != nil {
			return fmt.Errorf("weft: failed to decode xml body: %w", err)
		}

		return nil
	case strings.HasPrefix(ct, "application/x-www-form-urlencoded"),
		strings.HasPrefix(ct, "multipart/form-data"):
		fv, err := req.FormValues()
		if err != nil {
			return err
		}

		return b.bindData(v, fv, "form")
	}

	return fmt.Errorf("weft: unsupported media type %q", ct)
}

// bindData binds data into the struct pointed to by ptr, reading each
// field's value from the tag-named key.
func (b *binder) bindData(ptr interface{}, data url.Values, tag string) error {
	typ := reflect.TypeOf(ptr).Elem()
	val := reflect.ValueOf(ptr).Elem()

	if typ.Kind() != reflect.Struct {
		return errors.New("weft: binding target must be a struct")
	}

	for i := 0; i < typ.NumField(); i++ {
		typeField := typ.Field(i)
		structField := val.Field(i)

		if !structField.CanSet() {
			continue
		}

		name := typeField.Tag.Get(tag)
		if name == "" {
			name = typeField.Name
			if structField.Kind() == reflect.Struct {
				if err := b.bindData(structField.Addr().Interface(), data, tag); err != nil {
					return err
				}

				continue
			}
		}

		values, ok := data[name]
		if !ok || len(values) == 0 {
			continue
		}

		if structField.Kind() == reflect.Slice {
			elemKind := structField.Type().Elem().Kind()
			slice := reflect.MakeSlice(structField.Type(), len(values), len(values))

			for i, v := range values {
				if err := setWithProperType(elemKind, v, slice.Index(i)); err != nil {
					return err
				}
			}

			structField.Set(slice)

			continue
		}

		if err := setWithProperType(structField.Kind(), values[0], structField); err != nil {
			return err
		}
	}

	return nil
}

// setWithProperType assigns val into field, converting it to match k.
func setWithProperType(k reflect.Kind, val string, field reflect.Value) error {
	bitSize := 0
	switch k {
	case reflect.Int8, reflect.Uint8:
		bitSize = 8
	case reflect.Int16, reflect.Uint16:
		bitSize = 16
	case reflect.Int32, reflect.Uint32, reflect.Float32:
		bitSize = 32
	case reflect.Int64, reflect.Uint64, reflect.Float64:
		bitSize = 64
	}

	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if val == "" {
			val = "0"
		}

		n, err := strconv.ParseInt(val, 10, bitSize)
		if err != nil {
			return err
		}

		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if val == "" {
			val = "0"
		}

		n, err := strconv.ParseUint(val, 10, bitSize)
		if err != nil {
			return err
		}

		field.SetUint(n)
	case reflect.Bool:
		if val == "" {
			val = "false"
		}

		n, err := strconv.ParseBool(val)
		if err != nil {
			return err
		}

		field.SetBool(n)
	case reflect.Float32, reflect.Float64:
		if val == "" {
			val = "0"
		}

		n, err := strconv.ParseFloat(val, bitSize)
		if err != nil {
			return err
		}

		field.SetFloat(n)
	case reflect.String:
		field.SetString(val)
	default:
		return fmt.Errorf("weft: unsupported field kind %v", k)
	}

	return nil
}
