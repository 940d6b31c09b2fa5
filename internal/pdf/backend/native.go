package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/primitives"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/a3tai/mcp-pdf-filler/internal/fieldmap"
	pdferrors "github.com/a3tai/mcp-pdf-filler/internal/pdf/errors"
)

// AcroForm field flag bits (PDF 32000-1, 12.7.3.1 and 12.7.4)
const (
	flagRequired   = 1 << 1
	flagRadio      = 1 << 15
	flagPushbutton = 1 << 16
	flagCombo      = 1 << 17
)

// widgetKind is the pdfcpu form element a field is filled through
type widgetKind int

const (
	kindText widgetKind = iota
	kindDate
	kindCheckBox
	kindRadio
	kindComboBox
	kindListBox
)

// acroField is a terminal form field found while walking the AcroForm tree
type acroField struct {
	info fieldmap.FieldInfo
	kind widgetKind
}

// NativeBackend inspects and fills AcroForm fields in-process using pdfcpu
type NativeBackend struct {
	maxSize int64
	logger  *slog.Logger
}

// NewNativeBackend creates a pdfcpu backend rejecting documents above maxSize
// bytes (no limit when maxSize <= 0)
func NewNativeBackend(maxSize int64, logger *slog.Logger) *NativeBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &NativeBackend{maxSize: maxSize, logger: logger}
}

// Name returns the backend name
func (b *NativeBackend) Name() string {
	return NameNative
}

// Inspect lists the fillable fields of pdf
func (b *NativeBackend) Inspect(ctx context.Context, pdf []byte) ([]fieldmap.FieldInfo, error) {
	fields, err := b.readFields(ctx, pdf)
	if err != nil {
		return nil, err
	}

	infos := make([]fieldmap.FieldInfo, len(fields))
	for i, f := range fields {
		infos[i] = f.info
	}
	return infos, nil
}

// Fill writes values into pdf. Every value must name an existing field.
func (b *NativeBackend) Fill(ctx context.Context, pdf []byte, values fieldmap.Values, opts FillOptions) (*FillResult, error) {
	start := time.Now()

	fields, err := b.readFields(ctx, pdf)
	if err != nil {
		return nil, err
	}

	group, err := buildFormGroup(fields, values)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(group)
	if err != nil {
		return nil, pdferrors.WrapError(pdferrors.ErrorTypeRuntime, err).WithContext("encode form data")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	err = api.FillForm(bytes.NewReader(pdf), bytes.NewReader(payload), &out, newConfiguration())
	switch {
	case errors.Is(err, api.ErrNoFormFieldsAffected):
		// Every field already holds its value
		b.logger.Debug("fill left document unchanged", "backend", NameNative, "fields", len(values))
		out.Reset()
		out.Write(pdf)
	case err != nil:
		return nil, pdferrors.Wrap(fmt.Errorf("fill form: %w", err)).WithContext("pdfcpu")
	}

	if opts.Flatten {
		filled := out.Bytes()
		var locked bytes.Buffer
		if err := api.LockFormFields(bytes.NewReader(filled), &locked, nil, newConfiguration()); err != nil {
			return nil, pdferrors.Wrap(fmt.Errorf("lock form fields: %w", err)).WithContext("pdfcpu")
		}
		out = locked
	}

	if out.Len() == 0 {
		return nil, pdferrors.NewRuntimeError("PDF filling produced empty output")
	}

	result := &FillResult{
		Data:             out.Bytes(),
		FieldCount:       len(values),
		FilledFieldCount: filledCount(values),
		ProcessingTime:   time.Since(start),
	}

	b.logger.Debug("filled PDF",
		"backend", NameNative,
		"fields", result.FieldCount,
		"filled", result.FilledFieldCount,
		"flatten", opts.Flatten,
		"bytes", out.Len(),
	)

	return result, nil
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// readFields parses pdf and walks its AcroForm field tree
func (b *NativeBackend) readFields(ctx context.Context, pdf []byte) ([]acroField, error) {
	if err := checkInput(pdf, b.maxSize); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pctx, err := api.ReadContext(bytes.NewReader(pdf), newConfiguration())
	if err != nil {
		return nil, pdferrors.Wrap(fmt.Errorf("failed to read PDF context: %w", err)).WithContext("inspect")
	}

	fields, err := b.walkAcroForm(pctx)
	if err != nil {
		return nil, pdferrors.Wrap(err).WithContext("inspect")
	}

	b.logger.Debug("inspected PDF", "backend", NameNative, "fields", len(fields))
	return fields, nil
}

func (b *NativeBackend) walkAcroForm(ctx *model.Context) ([]acroField, error) {
	var fields []acroField

	rootDict, err := ctx.Catalog()
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog: %w", err)
	}

	acroFormObj, found := rootDict.Find("AcroForm")
	if !found {
		return fields, nil
	}

	acroFormDict, err := ctx.DereferenceDict(acroFormObj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference AcroForm: %w", err)
	}
	if acroFormDict == nil {
		return fields, nil
	}

	fieldsObj, found := acroFormDict.Find("Fields")
	if !found {
		return fields, nil
	}

	fieldsArray, err := ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return nil, fmt.Errorf("failed to dereference Fields array: %w", err)
	}

	seen := make(map[string]bool)
	for i, fieldRef := range fieldsArray {
		w := walker{ctx: ctx, logger: b.logger, seen: seen}
		w.visit(fieldRef, "", inherited{}, fmt.Sprintf("field_%d", i), 0)
		fields = append(fields, w.fields...)
	}

	return fields, nil
}

// inherited holds the inheritable entries of ancestor field dictionaries
type inherited struct {
	fieldType string
	flags     int
	hasFlags  bool
}

type walker struct {
	ctx    *model.Context
	logger *slog.Logger
	seen   map[string]bool
	fields []acroField
}

// maxFieldDepth bounds recursion through malformed Kids cycles
const maxFieldDepth = 32

func (w *walker) visit(obj types.Object, parent string, inh inherited, fallback string, depth int) {
	if depth > maxFieldDepth {
		return
	}

	d, err := w.ctx.DereferenceDict(obj)
	if err != nil || d == nil {
		w.logger.Debug("skipping unreadable field", "parent", parent, "error", err)
		return
	}

	name := parent
	if partial := w.stringEntry(d, "T"); partial != "" {
		if parent != "" {
			name = parent + "." + partial
		} else {
			name = partial
		}
	}

	if ft, ok := w.nameEntry(d, "FT"); ok {
		inh.fieldType = ft
	}
	if flags, ok := w.intEntry(d, "Ff"); ok {
		inh.flags = flags
		inh.hasFlags = true
	}

	// A field whose kids carry their own names is a non-terminal node
	if kids := w.fieldKids(d); len(kids) > 0 {
		for i, kid := range kids {
			w.visit(kid, name, inh, fmt.Sprintf("%s_%d", fallback, i), depth+1)
		}
		return
	}

	if name == "" {
		name = fallback
	}
	if w.seen[name] {
		return
	}

	field, ok := w.terminalField(d, name, inh)
	if !ok {
		return
	}
	w.seen[name] = true
	w.fields = append(w.fields, field)
}

// fieldKids returns the Kids that are fields rather than bare widgets
func (w *walker) fieldKids(d types.Dict) types.Array {
	kidsObj, found := d.Find("Kids")
	if !found {
		return nil
	}
	kids, err := w.ctx.DereferenceArray(kidsObj)
	if err != nil {
		return nil
	}

	var fieldKids types.Array
	for _, kid := range kids {
		kd, err := w.ctx.DereferenceDict(kid)
		if err != nil || kd == nil {
			continue
		}
		if _, hasName := kd.Find("T"); hasName {
			fieldKids = append(fieldKids, kid)
		}
	}
	return fieldKids
}

func (w *walker) terminalField(d types.Dict, name string, inh inherited) (acroField, bool) {
	info := fieldmap.FieldInfo{
		Name:     name,
		Required: inh.hasFlags && inh.flags&flagRequired != 0,
	}

	var kind widgetKind
	switch inh.fieldType {
	case "Tx":
		kind = kindText
		if w.isDateField(d) {
			kind = kindDate
		}
		info.Type = fieldmap.FieldTypeText
		if maxLen, ok := w.intEntry(d, "MaxLen"); ok && maxLen > 0 {
			info.MaxLength = maxLen
		}
		if dv := w.stringEntry(d, "DV"); dv != "" {
			info.DefaultValue = dv
		}
	case "Btn":
		switch {
		case inh.flags&flagPushbutton != 0:
			return acroField{}, false
		case inh.flags&flagRadio != 0:
			kind = kindRadio
			info.Type = fieldmap.FieldTypeRadio
			info.Options = w.radioOptions(d)
		default:
			kind = kindCheckBox
			info.Type = fieldmap.FieldTypeCheckbox
		}
		if dv, ok := w.nameEntry(d, "DV"); ok {
			info.DefaultValue = dv
		}
	case "Ch":
		kind = kindListBox
		if inh.flags&flagCombo != 0 {
			kind = kindComboBox
		}
		info.Type = fieldmap.FieldTypeDropdown
		info.Options = w.choiceOptions(d)
		if dv := w.stringEntry(d, "DV"); dv != "" {
			info.DefaultValue = dv
		}
	default:
		// Signatures and fields without a type cannot be filled
		return acroField{}, false
	}

	return acroField{info: info, kind: kind}, true
}

// jsDateFormat is the Acrobat format action call naming a date field's format
const jsDateFormat = `AFDate_FormatEx("`

// isDateField reports whether pdfcpu fills the text field d as a date field:
// a date format action, or a default or current value that parses as a date
func (w *walker) isDateField(d types.Dict) bool {
	if aa := d.DictEntry("AA"); len(aa) > 0 {
		if f := aa.DictEntry("F"); len(f) > 0 {
			if sl := f.StringLiteralEntry("JS"); sl != nil {
				if js, err := types.StringLiteralToString(*sl); err == nil {
					if i := strings.Index(js, jsDateFormat); i >= 0 {
						js = js[i+len(jsDateFormat):]
						if len(js) > 10 {
							js = js[:10]
						}
					}
					if _, err := primitives.DateFormatForFmtExt(js); err == nil {
						return true
					}
				}
			}
		}
	}

	for _, key := range []string{"DV", "V"} {
		if v := w.stringEntry(d, key); v != "" {
			if _, err := primitives.DateFormatForDate(v); err == nil {
				return true
			}
		}
	}
	return false
}

// choiceOptions reads the Opt array; for [export, display] pairs the export
// value is what gets written
func (w *walker) choiceOptions(d types.Dict) []string {
	optObj, found := d.Find("Opt")
	if !found {
		return nil
	}
	optArray, err := w.ctx.DereferenceArray(optObj)
	if err != nil {
		return nil
	}

	var options []string
	for _, opt := range optArray {
		if str, err := w.ctx.DereferenceStringOrHexLiteral(opt, model.V10, nil); err == nil {
			options = append(options, str)
		} else if arr, err := w.ctx.DereferenceArray(opt); err == nil && len(arr) >= 1 {
			if export, err := w.ctx.DereferenceStringOrHexLiteral(arr[0], model.V10, nil); err == nil {
				options = append(options, export)
			}
		}
	}
	return options
}

// radioOptions collects the on-state appearance names of the widgets of a
// radio button group
func (w *walker) radioOptions(d types.Dict) []string {
	if opts := w.choiceOptions(d); len(opts) > 0 {
		return opts
	}

	widgets := types.Array{d}
	if kidsObj, found := d.Find("Kids"); found {
		if kids, err := w.ctx.DereferenceArray(kidsObj); err == nil && len(kids) > 0 {
			widgets = kids
		}
	}

	var options []string
	seen := map[string]bool{}
	for _, widget := range widgets {
		wd, err := w.ctx.DereferenceDict(widget)
		if err != nil || wd == nil {
			continue
		}
		for _, state := range w.onStates(wd) {
			if !seen[state] {
				seen[state] = true
				options = append(options, state)
			}
		}
	}
	return options
}

func (w *walker) onStates(widget types.Dict) []string {
	apObj, found := widget.Find("AP")
	if !found {
		return nil
	}
	ap, err := w.ctx.DereferenceDict(apObj)
	if err != nil || ap == nil {
		return nil
	}
	nObj, found := ap.Find("N")
	if !found {
		return nil
	}
	n, err := w.ctx.DereferenceDict(nObj)
	if err != nil || n == nil {
		return nil
	}

	states := make([]string, 0, len(n))
	for state := range n {
		if state != "Off" {
			states = append(states, state)
		}
	}
	sort.Strings(states)
	return states
}

func (w *walker) stringEntry(d types.Dict, key string) string {
	obj, found := d.Find(key)
	if !found {
		return ""
	}
	s, err := w.ctx.DereferenceStringOrHexLiteral(obj, model.V10, nil)
	if err != nil {
		return ""
	}
	return s
}

func (w *walker) nameEntry(d types.Dict, key string) (string, bool) {
	obj, found := d.Find(key)
	if !found {
		return "", false
	}
	n, err := w.ctx.DereferenceName(obj, model.V10, nil)
	if err != nil {
		return "", false
	}
	return n.Value(), true
}

func (w *walker) intEntry(d types.Dict, key string) (int, bool) {
	obj, found := d.Find(key)
	if !found {
		return 0, false
	}
	i, err := w.ctx.DereferenceInteger(obj)
	if err != nil || i == nil {
		return 0, false
	}
	return i.Value(), true
}

// Form data in the JSON layout accepted by api.FillForm

type formGroup struct {
	Forms []form `json:"forms"`
}

type form struct {
	TextFields        []textField   `json:"textfield,omitempty"`
	DateFields        []textField   `json:"datefield,omitempty"`
	CheckBoxes        []checkBox    `json:"checkbox,omitempty"`
	RadioButtonGroups []choiceField `json:"radiobuttongroup,omitempty"`
	ComboBoxes        []choiceField `json:"combobox,omitempty"`
	ListBoxes         []listBox     `json:"listbox,omitempty"`
}

type textField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type checkBox struct {
	Name  string `json:"name"`
	Value bool   `json:"value"`
}

type choiceField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type listBox struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// buildFormGroup sorts values into pdfcpu's per-kind form element lists
func buildFormGroup(fields []acroField, values fieldmap.Values) (*formGroup, error) {
	byName := make(map[string]acroField, len(fields))
	for _, f := range fields {
		byName[f.info.Name] = f
	}

	names := values.Names()
	sort.Strings(names)

	var f form
	for _, name := range names {
		value := values[name]
		field, ok := byName[name]
		if !ok {
			return nil, pdferrors.Wrap(&fieldmap.DataError{Reason: fieldmap.ReasonFieldNotFound, Field: name})
		}

		switch field.kind {
		case kindText:
			f.TextFields = append(f.TextFields, textField{Name: name, Value: value})
		case kindDate:
			f.DateFields = append(f.DateFields, textField{Name: name, Value: value})
		case kindCheckBox:
			f.CheckBoxes = append(f.CheckBoxes, checkBox{Name: name, Value: value == fieldmap.CheckboxOn})
		case kindRadio:
			f.RadioButtonGroups = append(f.RadioButtonGroups, choiceField{Name: name, Value: value})
		case kindComboBox:
			f.ComboBoxes = append(f.ComboBoxes, choiceField{Name: name, Value: value})
		case kindListBox:
			lb := listBox{Name: name, Values: []string{}}
			if value != "" {
				lb.Values = append(lb.Values, value)
			}
			f.ListBoxes = append(f.ListBoxes, lb)
		}
	}

	return &formGroup{Forms: []form{f}}, nil
}
