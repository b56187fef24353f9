package apiclient

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"sort"
)

// File is a named upload stream for multipart fields.
type File struct {
	Name    string
	Content io.Reader
}

// MultipartBody is an encoded multipart form ready to be sent as a request
// body.
type MultipartBody struct {
	Reader      io.Reader
	ContentType string
}

// EncodeForm serializes a flat key/value map into a multipart form. Slice
// values expand into indexed field names (key[0], key[1], ...), File values
// become file parts, nil values are skipped, everything else is written with
// its default string form. Keys are encoded in sorted order.
func EncodeForm(data map[string]any) (*MultipartBody, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := writeField(writer, key, data[key]); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}

	return &MultipartBody{
		Reader:      &buf,
		ContentType: writer.FormDataContentType(),
	}, nil
}

func writeField(writer *multipart.Writer, key string, value any) error {
	switch v := value.(type) {
	case nil:
		return nil
	case File:
		part, err := writer.CreateFormFile(key, v.Name)
		if err != nil {
			return err
		}
		_, err = io.Copy(part, v.Content)
		return err
	case []string:
		for i, item := range v {
			if err := writer.WriteField(fmt.Sprintf("%s[%d]", key, i), item); err != nil {
				return err
			}
		}
		return nil
	case []any:
		for i, item := range v {
			if err := writeField(writer, fmt.Sprintf("%s[%d]", key, i), item); err != nil {
				return err
			}
		}
		return nil
	case string:
		return writer.WriteField(key, v)
	default:
		return writer.WriteField(key, fmt.Sprint(v))
	}
}
