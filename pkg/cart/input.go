package cart

import (
	"math"
	"strconv"
	"strings"

	"github.com/artfolio/cartstore/pkg/errors"
	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"
)

var validate = validator.New()

// ParseArtwork decodes a loosely shaped artwork object, as returned by the
// marketplace API. It fails only when raw is not a JSON object or has no id.
func ParseArtwork(raw []byte) (*ArtworkInput, error) {
	obj, err := productObject(raw)
	if err != nil {
		return nil, err
	}

	in := &ArtworkInput{
		ID:          productID(obj),
		Title:       optString(obj, "title"),
		Artist:      optName(obj.Get("artist")),
		Price:       optFloat(obj.Get("price")),
		Images:      imageList(obj.Get("images")),
		Status:      optString(obj, "status"),
		Category:    optName(obj.Get("category")),
		Description: optString(obj, "description"),
		Height:      optFloat(firstOf(obj, "dimensions.height", "height")),
		Width:       optFloat(firstOf(obj, "dimensions.width", "width")),
		Depth:       optFloat(firstOf(obj, "dimensions.depth", "depth")),
		Unit:        optString(obj, "dimensions.unit", "unit"),
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	return in, nil
}

// ParseMaterial decodes a loosely shaped art material object.
func ParseMaterial(raw []byte) (*MaterialInput, error) {
	obj, err := productObject(raw)
	if err != nil {
		return nil, err
	}

	in := &MaterialInput{
		ID:          productID(obj),
		Name:        optString(obj, "name", "title"),
		Price:       optFloat(obj.Get("price")),
		Images:      imageList(obj.Get("images")),
		Category:    optName(obj.Get("category")),
		Description: optString(obj, "description"),
		Stock:       optInt(obj.Get("stock")),
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	return in, nil
}

// productObject unwraps a {"data": {...}} envelope if present.
func productObject(raw []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, errors.New(errors.KindInvalidArgument, "product is not valid JSON")
	}
	obj := gjson.ParseBytes(raw)
	if data := obj.Get("data"); data.IsObject() && !obj.Get("id").Exists() {
		obj = data
	}
	if !obj.IsObject() {
		return gjson.Result{}, errors.New(errors.KindInvalidArgument, "product must be a JSON object")
	}
	return obj, nil
}

func productID(obj gjson.Result) string {
	id := firstOf(obj, "id", "_id")
	switch id.Type {
	case gjson.String, gjson.Number:
		return strings.TrimSpace(id.String())
	}
	return ""
}

func validateInput(in any) error {
	switch v := in.(type) {
	case *ArtworkInput:
		v.ID = strings.TrimSpace(v.ID)
	case *MaterialInput:
		v.ID = strings.TrimSpace(v.ID)
	}
	if err := validate.Struct(in); err != nil {
		return errors.WrapKind(errors.KindInvalidArgument, err, "product id is required")
	}
	return nil
}

func validateUser(userID string) error {
	if err := validate.Var(strings.TrimSpace(userID), "required"); err != nil {
		return errors.New(errors.KindInvalidArgument, "user id is required")
	}
	return nil
}

func firstOf(obj gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if r := obj.Get(p); r.Exists() && r.Type != gjson.Null {
			return r
		}
	}
	return gjson.Result{}
}

func optString(obj gjson.Result, paths ...string) *string {
	r := firstOf(obj, paths...)
	switch r.Type {
	case gjson.String, gjson.Number:
		s := r.String()
		return &s
	}
	return nil
}

// optName accepts either "Jane Doe" or {"name": "Jane Doe"}.
func optName(r gjson.Result) *string {
	if r.IsObject() {
		r = r.Get("name")
	}
	if r.Type != gjson.String {
		return nil
	}
	s := r.Str
	return &s
}

// optFloat reads a JSON number or numeric string. NaN and infinities are
// treated as absent.
func optFloat(r gjson.Result) *float64 {
	var f float64
	switch r.Type {
	case gjson.Number:
		f = r.Float()
	case gjson.String:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// optInt truncates a numeric field into [0, math.MaxInt32].
func optInt(r gjson.Result) *int {
	f := optFloat(r)
	if f == nil {
		return nil
	}
	var n int
	switch {
	case *f <= 0:
		n = 0
	case *f >= math.MaxInt32:
		n = math.MaxInt32
	default:
		n = int(*f)
	}
	return &n
}

// imageList accepts ["url", ...] and [{"url": "..."}, ...].
func imageList(r gjson.Result) []string {
	if !r.IsArray() {
		return nil
	}
	var images []string
	for _, img := range r.Array() {
		switch {
		case img.Type == gjson.String:
			images = append(images, img.Str)
		case img.IsObject():
			images = append(images, img.Get("url").String())
		}
	}
	return images
}
