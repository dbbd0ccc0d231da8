package uploadsim

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"
)

var (
	errInvalidUTF8    = errors.New("response body is not valid UTF-8")
	errNoShapeMatched = errors.New("data did not match any known response shape")
	errAmbiguousShape = errors.New("data matched both the failure and the success response shape")
)

type rawUploadResponse interface {
	uploadedImage() (*UploadedImage, error)
}

type rawUploadFailure struct {
	StatusCode int
	StatusText string
}

type rawUploadSuccess struct {
	ImgName     string
	ImgURL      string
	ImgView     string
	ImgHeight   FullSizeDimension
	ImgWidth    FullSizeDimension
	ThumbURL    string
	ThumbHeight ThumbnailDimension
	ThumbWidth  ThumbnailDimension
	Resized     bool
}

// jsonObject holds the undecoded members of a JSON object.
type jsonObject map[string]json.RawMessage

// fieldError reports a required member that is absent or null.
type fieldError struct {
	name   string
	reason string
}

func (e *fieldError) Error() string {
	return e.name + ": " + e.reason
}

// DecodeResponse decodes the body of an upload response. A well-formed
// failure record yields an *UploadError of kind ErrResponseReturnedFailure;
// anything that is neither shape yields ErrParsingResponse.
func DecodeResponse(body string) (*UploadedImage, error) {
	raw, err := parseRawUploadResponse(body)
	if err != nil {
		return nil, newUploadError(ErrParsingResponse, err)
	}
	return raw.uploadedImage()
}

// parseRawUploadResponse matches body against the failure shape first and
// the success shape second. Exactly one must match.
func parseRawUploadResponse(body string) (rawUploadResponse, error) {
	if !utf8.ValidString(body) {
		return nil, errInvalidUTF8
	}

	var obj jsonObject
	if err := json.Unmarshal([]byte(body), &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errNoShapeMatched
	}

	failure, failureErr := parseFailure(obj)
	success, successErr := parseSuccess(obj)

	switch {
	case failureErr == nil && successErr == nil:
		return nil, errAmbiguousShape
	case failureErr == nil:
		return failure, nil
	case successErr == nil:
		return success, nil
	}

	// Report the success diagnostic when the document looks like a success,
	// otherwise the failure one.
	if _, ok := obj["data"]; ok {
		return nil, fmt.Errorf("%w: %w", errNoShapeMatched, successErr)
	}
	if _, ok := obj["status_code"]; ok {
		return nil, fmt.Errorf("%w: %w", errNoShapeMatched, failureErr)
	}
	return nil, errNoShapeMatched
}

func parseFailure(obj jsonObject) (*rawUploadFailure, error) {
	var f rawUploadFailure

	code, err := obj.field("status_code")
	if err != nil {
		return nil, err
	}
	if f.StatusCode, err = parseStatusCode(code); err != nil {
		return nil, err
	}
	if err = obj.decode("status_txt", &f.StatusText); err != nil {
		return nil, err
	}
	return &f, nil
}

func parseSuccess(obj jsonObject) (*rawUploadSuccess, error) {
	var data jsonObject
	if err := obj.decode("data", &data); err != nil {
		return nil, err
	}

	var s rawUploadSuccess
	steps := []func() error{
		func() error { return data.decode("img_name", &s.ImgName) },
		func() error { return data.decode("img_url", &s.ImgURL) },
		func() error { return data.decode("img_view", &s.ImgView) },
		func() (err error) { s.ImgHeight, err = data.uint64String("img_height"); return },
		func() (err error) { s.ImgWidth, err = data.uint64String("img_width"); return },
		func() error { return data.decode("thumb_url", &s.ThumbURL) },
		func() error { return data.decode("thumb_height", &s.ThumbHeight) },
		func() error { return data.decode("thumb_width", &s.ThumbWidth) },
		func() (err error) { s.Resized, err = data.boolNumberString("resized"); return },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, fmt.Errorf("data.%w", err)
		}
	}

	for _, u := range []struct{ field, value string }{
		{"img_url", s.ImgURL},
		{"img_view", s.ImgView},
		{"thumb_url", s.ThumbURL},
	} {
		if _, err := parseAbsoluteURL(u.value); err != nil {
			return nil, &InvalidValueError{
				Field:      "data." + u.field,
				Unexpected: "string " + strconv.Quote(u.value),
				Expected:   "absolute URL",
			}
		}
	}
	return &s, nil
}

func (obj jsonObject) field(name string) (json.RawMessage, error) {
	raw, ok := obj[name]
	if !ok {
		return nil, &fieldError{name: name, reason: "missing field"}
	}
	return raw, nil
}

// decode unmarshals a required member into v. JSON null is rejected.
func (obj jsonObject) decode(name string, v any) error {
	raw, err := obj.field(name)
	if err != nil {
		return err
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return &fieldError{name: name, reason: "unexpected null"}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (obj jsonObject) uint64String(name string) (uint64, error) {
	var s string
	if err := obj.decode(name, &s); err != nil {
		return 0, err
	}
	n, err := parseUint64String(s)
	if err != nil {
		return 0, withField(name, err)
	}
	return n, nil
}

func (obj jsonObject) boolNumberString(name string) (bool, error) {
	var s string
	if err := obj.decode(name, &s); err != nil {
		return false, err
	}
	b, err := parseBoolNumberString(s)
	if err != nil {
		return false, withField(name, err)
	}
	return b, nil
}

func withField(name string, err error) error {
	var ive *InvalidValueError
	if errors.As(err, &ive) {
		ive.Field = name
		return ive
	}
	return fmt.Errorf("%s: %w", name, err)
}

// parseStatusCode accepts a JSON string or number holding an HTTP status
// code in the 100-599 range.
func parseStatusCode(raw json.RawMessage) (int, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		var num json.Number
		if err := json.Unmarshal(raw, &num); err != nil {
			return 0, fmt.Errorf("status_code: %w", err)
		}
		text = num.String()
	}

	code, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, &InvalidValueError{
			Field:      "status_code",
			Unexpected: "string " + strconv.Quote(text),
			Expected:   "valid HTTP status code",
		}
	}
	if code < 100 || code > 599 {
		return 0, &InvalidValueError{
			Field:      "status_code",
			Unexpected: fmt.Sprintf("integer %d", code),
			Expected:   "valid HTTP status code",
		}
	}
	return int(code), nil
}

// parseUint64String parses a decimal string into a uint64.
func parseUint64String(s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		desc := err.Error()
		var numErr *strconv.NumError
		if errors.As(err, &numErr) {
			desc = numErr.Err.Error()
		}
		return 0, &InvalidValueError{
			Unexpected: "string " + strconv.Quote(s),
			Expected:   desc,
		}
	}
	return n, nil
}

// parseBoolNumberString parses "0" or "1" into a bool.
func parseBoolNumberString(s string) (bool, error) {
	n, err := parseUint64String(s)
	if err != nil {
		return false, err
	}
	switch n {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, &InvalidValueError{
		Unexpected: fmt.Sprintf("integer %d", n),
		Expected:   "boolean integral value",
	}
}

func (f *rawUploadFailure) uploadedImage() (*UploadedImage, error) {
	return nil, &UploadError{
		Kind:       ErrResponseReturnedFailure,
		StatusCode: f.StatusCode,
		StatusText: f.StatusText,
	}
}

func (s *rawUploadSuccess) uploadedImage() (*UploadedImage, error) {
	// URLs were validated by parseSuccess.
	imgURL, _ := parseAbsoluteURL(s.ImgURL)
	viewURL, _ := parseAbsoluteURL(s.ImgView)
	thumbURL, _ := parseAbsoluteURL(s.ThumbURL)

	return &UploadedImage{
		Name: s.ImgName,
		FullSize: ImageReference[FullSizeDimension]{
			URL: imgURL,
			Dimensions: Rectangle[FullSizeDimension]{
				Height: s.ImgHeight,
				Width:  s.ImgWidth,
			},
		},
		ViewURL: viewURL,
		Thumbnail: ImageReference[ThumbnailDimension]{
			URL: thumbURL,
			Dimensions: Rectangle[ThumbnailDimension]{
				Height: s.ThumbHeight,
				Width:  s.ThumbWidth,
			},
		},
		WasResized: s.Resized,
	}, nil
}
