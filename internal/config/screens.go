package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/alfredjeanlab/portal/internal/model"
)

// ScreensFile is the TOML screen override file:
//
//	[screens.feedback]
//	limit = 25
//	sort_mode = "server"
type ScreensFile struct {
	Screens map[string]ScreenOverride `toml:"screens"`
}

// ScreenOverride replaces parts of a resource's per-screen configuration.
// Zero values keep the built-in setting.
type ScreenOverride struct {
	Limit        int      `toml:"limit" validate:"omitempty,min=1,max=100"`
	Columns      []string `toml:"columns" validate:"omitempty,dive,required"`
	SearchFields []string `toml:"search_fields" validate:"omitempty,dive,required"`
	SortMode     string   `toml:"sort_mode" validate:"omitempty,oneof=local server"`
	Reconcile    string   `toml:"reconcile" validate:"omitempty,oneof=refetch patch"`
	DefaultSort  string   `toml:"default_sort" validate:"omitempty,printascii"`
}

var (
	validate   *validator.Validate
	translator ut.Translator
)

func init() {
	validate = validator.New()

	english := en.New()
	uni := ut.New(english, english)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Report TOML keys rather than Go field names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("toml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// LoadScreens decodes and validates the override file at path. A missing
// file or empty path yields no overrides.
func LoadScreens(path string) (map[string]ScreenOverride, error) {
	if path == "" {
		return map[string]ScreenOverride{}, nil
	}
	var f ScreensFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]ScreenOverride{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if f.Screens == nil {
		f.Screens = map[string]ScreenOverride{}
	}
	if err := ValidateScreens(f.Screens); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f.Screens, nil
}

// ValidateScreens checks that every override names a known resource and
// carries valid values.
func ValidateScreens(screens map[string]ScreenOverride) error {
	names := make([]string, 0, len(screens))
	for name := range screens {
		names = append(names, name)
	}
	sort.Strings(names)

	var problems []string
	for _, name := range names {
		if _, err := model.LookupResource(name); err != nil {
			problems = append(problems, fmt.Sprintf("screen %q: unknown resource", name))
			continue
		}
		err := validate.Struct(screens[name])
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				problems = append(problems, fmt.Sprintf("screen %q: %s", name, fe.Translate(translator)))
			}
		} else if err != nil {
			return err
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// ApplyScreens returns every resource with its override applied. The
// package-level resource definitions are never modified.
func ApplyScreens(screens map[string]ScreenOverride) []*model.Resource {
	var out []*model.Resource
	for _, base := range model.Resources() {
		r := base.Clone()
		for name, o := range screens {
			if res, err := model.LookupResource(name); err == nil && res.Name == r.Name {
				o.applyTo(r)
			}
		}
		out = append(out, r)
	}
	return out
}

func (o ScreenOverride) applyTo(r *model.Resource) {
	if o.Limit > 0 {
		r.Limit = o.Limit
	}
	if len(o.Columns) > 0 {
		r.Columns = o.Columns
	}
	if len(o.SearchFields) > 0 {
		r.SearchFields = o.SearchFields
	}
	if o.SortMode != "" {
		r.SortMode = model.SortMode(o.SortMode)
	}
	if o.Reconcile != "" {
		r.Reconcile = model.Reconcile(o.Reconcile)
	}
	if o.DefaultSort != "" {
		r.DefaultSort = model.ParseSort(o.DefaultSort)
	}
}
