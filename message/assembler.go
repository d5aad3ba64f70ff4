// Package message assembles welcome messages from user input and dispatches them
package message

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/zllovesuki/plzdm/dispatch"
	"github.com/zllovesuki/plzdm/spec"
)

var validate *validator.Validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("cta_url", func(fl validator.FieldLevel) bool {
		return ValidCTAURL(fl.Field().String())
	})
	return v
}

// Input is the raw welcome message form
type Input struct {
	MainText string `json:"main_text" validate:"required,max=10000"`
	Label1   string `json:"label_1" validate:"max=36"`
	Link1    string `json:"link_1"`
	Label2   string `json:"label_2" validate:"max=36"`
	Link2    string `json:"link_2"`
	Label3   string `json:"label_3" validate:"max=36"`
	Link3    string `json:"link_3"`
}

func (in Input) trimmed() Input {
	return Input{
		MainText: strings.TrimSpace(in.MainText),
		Label1:   strings.TrimSpace(in.Label1),
		Link1:    strings.TrimSpace(in.Link1),
		Label2:   strings.TrimSpace(in.Label2),
		Link2:    strings.TrimSpace(in.Link2),
		Label3:   strings.TrimSpace(in.Label3),
		Link3:    strings.TrimSpace(in.Link3),
	}
}

// FieldError describes one rejected form field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every rejected field of an Input
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid welcome message: %s", strings.Join(e.Messages(), "; "))
}

// Messages returns the human readable message of each field
func (e *ValidationError) Messages() []string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return msgs
}

// AssemblerOptions contains the configuration of Assembler
type AssemblerOptions struct {
	// BrandedCTA is appended after the user's CTAs. Defaults to the PlzDM.me link
	BrandedCTA *dispatch.CTA
}

// Assembler turns user input into the message body sent to Twitter
type Assembler struct {
	branded dispatch.CTA
}

// NewAssembler returns an Assembler
func NewAssembler(option AssemblerOptions) (*Assembler, error) {
	branded := dispatch.CTA{
		Type:  dispatch.CTATypeWebURL,
		Label: spec.DefaultBrandedCTALabel,
		URL:   spec.DefaultBrandedCTAURL,
	}
	if option.BrandedCTA != nil {
		branded = *option.BrandedCTA
		branded.Type = dispatch.CTATypeWebURL
	}
	if len(branded.Label) == 0 || len([]rune(branded.Label)) > spec.MaxCTALabelLength {
		return nil, fmt.Errorf("branded CTA label %q is invalid", branded.Label)
	}
	if !ValidCTAURL(branded.URL) {
		return nil, fmt.Errorf("branded CTA url %q is invalid", branded.URL)
	}
	return &Assembler{
		branded: branded,
	}, nil
}

type candidate struct {
	field string
	cta   dispatch.CTA
}

// Assemble validates the input and builds the message. Unentitled users only get the branded CTA
func (a *Assembler) Assemble(raw Input, entitled bool) (dispatch.MessageData, error) {
	in := raw.trimmed()

	var fields []FieldError
	if err := validate.Struct(&in); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return dispatch.MessageData{}, err
		}
		for _, fe := range verrs {
			fields = append(fields, fieldError(fe))
		}
	}

	candidates := make([]candidate, 0, 4)
	if entitled {
		candidates = append(candidates,
			userCandidate("link_1", in.Label1, in.Link1),
			userCandidate("link_2", in.Label2, in.Link2),
			userCandidate("link_3", in.Label3, in.Link3),
		)
	}
	candidates = append(candidates, candidate{cta: a.branded})

	ctas := make([]dispatch.CTA, 0, len(candidates))
	for _, c := range candidates {
		if len(c.cta.Label) == 0 || len(c.cta.URL) == 0 {
			continue
		}
		if err := validate.Var(c.cta.URL, "cta_url"); err != nil {
			fields = append(fields, FieldError{
				Field:   c.field,
				Message: fmt.Sprintf("%s is not a valid public URL", c.field),
			})
			continue
		}
		ctas = append(ctas, c.cta)
	}

	if len(fields) > 0 {
		return dispatch.MessageData{}, &ValidationError{Fields: fields}
	}

	if len(ctas) > spec.MaxCTAs {
		ctas = ctas[:spec.MaxCTAs]
	}
	data := dispatch.MessageData{
		Text: in.MainText,
	}
	if len(ctas) > 0 {
		data.CTAs = ctas
	}
	return data, nil
}

func userCandidate(field, label, link string) candidate {
	return candidate{
		field: field,
		cta: dispatch.CTA{
			Type:  dispatch.CTATypeWebURL,
			Label: label,
			URL:   link,
		},
	}
}

func fieldError(fe validator.FieldError) FieldError {
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required", fe.Field())
	case "max":
		msg = fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		msg = fmt.Sprintf("%s is invalid", fe.Field())
	}
	return FieldError{
		Field:   fe.Field(),
		Message: msg,
	}
}
