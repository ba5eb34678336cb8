package unitupdate

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"condo/internal/core/apperror"
	"condo/internal/core/id"
	"condo/internal/core/types"
	"condo/internal/domain/account"
)

var (
	validate   *validator.Validate
	translator ut.Translator
)

// custom validation tags
const (
	mobileTag    = "mobile"
	dateOrderTag = "date_order"
)

func init() {
	validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names so errors land on the form field the client sent.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(mobileTag, mobileValidation)
	validate.RegisterStructValidation(unitFormStructValidation, UnitForm{})

	noop := func(ut.Translator) error { return nil }
	for _, tag := range []string{mobileTag, dateOrderTag} {
		_ = validate.RegisterTranslation(tag, translator, noop, translateCustom)
	}
}

func translateCustom(_ ut.Translator, fe validator.FieldError) string {
	switch fe.Tag() {
	case mobileTag:
		return "mobile must look like 09xxxxxxxxx"
	case dateOrderTag:
		return "end date must not be before start date"
	default:
		return ""
	}
}

// mobileValidation accepts an empty value; pair with required when needed.
func mobileValidation(fl validator.FieldLevel) bool {
	s, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return s == "" || account.IsValidMobile(s)
}

func unitFormStructValidation(sl validator.StructLevel) {
	f, ok := sl.Current().Interface().(UnitForm)
	if !ok || !f.IsRenter {
		return
	}
	start, end := f.RenterDates()
	if start != nil && end != nil && start.After(*end) {
		sl.ReportError(f.RenterEndDate, "renterEndDate", "RenterEndDate", dateOrderTag, "")
	}
}

// UnitForm is the submitted state of a unit, its owner and its renter.
// Renter fields are only read when IsRenter is set.
type UnitForm struct {
	ManagerID *id.ID `json:"managerId"` // admin only; middle admins act on their own units
	HouseID   *id.ID `json:"houseId"`

	UnitNumber         string `json:"unitNumber" validate:"required,max=32"`
	Area               string `json:"area" validate:"required,numeric"`
	BedroomsCount      int    `json:"bedroomsCount" validate:"gte=0"`
	ParkingCount       int    `json:"parkingCount" validate:"gte=0"`
	ExtraParkingFirst  string `json:"extraParkingFirst" validate:"max=32"`
	ExtraParkingSecond string `json:"extraParkingSecond" validate:"max=32"`

	OwnerName         string `json:"ownerName" validate:"required,max=128"`
	OwnerMobile       string `json:"ownerMobile" validate:"required,mobile"`
	OwnerNationalCode string `json:"ownerNationalCode" validate:"omitempty,len=10,numeric"`
	OwnerPeopleCount  string `json:"ownerPeopleCount"`
	OwnerFirstCharge  int64  `json:"ownerFirstCharge" validate:"gte=0"`

	// Password replaces the credential of whoever the save targets
	// (owner, or the active renter when the owner is unchanged).
	Password string `json:"password" validate:"omitempty,min=6,max=72"`

	BankID   *id.ID `json:"bankId"`
	IsRenter bool   `json:"isRenter"`

	RenterName         string `json:"renterName" validate:"required_if=IsRenter true,max=128"`
	RenterMobile       string `json:"renterMobile" validate:"required_if=IsRenter true,mobile"`
	RenterNationalCode string `json:"renterNationalCode" validate:"omitempty,len=10,numeric"`
	RenterPeopleCount  string `json:"renterPeopleCount" validate:"required_if=IsRenter true"`
	RenterStartDate    string `json:"renterStartDate" validate:"omitempty,datetime=2006-01-02"`
	RenterEndDate      string `json:"renterEndDate" validate:"omitempty,datetime=2006-01-02"`
	RenterFirstCharge  int64  `json:"renterFirstCharge" validate:"gte=0"`
}

// Normalize trims input and maps Persian digits and mobile prefixes.
func (f *UnitForm) Normalize() {
	trim := strings.TrimSpace
	f.UnitNumber = types.NormalizeDigits(trim(f.UnitNumber))
	f.Area = types.NormalizeDigits(trim(f.Area))
	f.ExtraParkingFirst = trim(f.ExtraParkingFirst)
	f.ExtraParkingSecond = trim(f.ExtraParkingSecond)

	f.OwnerName = trim(f.OwnerName)
	f.OwnerMobile = account.NormalizeMobile(f.OwnerMobile)
	f.OwnerNationalCode = types.NormalizeDigits(trim(f.OwnerNationalCode))
	f.OwnerPeopleCount = types.NormalizeDigits(trim(f.OwnerPeopleCount))

	f.RenterName = trim(f.RenterName)
	f.RenterMobile = account.NormalizeMobile(f.RenterMobile)
	f.RenterNationalCode = types.NormalizeDigits(trim(f.RenterNationalCode))
	f.RenterPeopleCount = types.NormalizeDigits(trim(f.RenterPeopleCount))
	f.RenterStartDate = types.NormalizeDigits(trim(f.RenterStartDate))
	f.RenterEndDate = types.NormalizeDigits(trim(f.RenterEndDate))
}

// Validate normalizes the form and reports every invalid field at once.
func (f *UnitForm) Validate() error {
	f.Normalize()

	err := validate.Struct(f)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.NewValidation(err.Error())
	}
	appErr := apperror.NewValidation("unit form is invalid")
	for _, fe := range verrs {
		appErr.WithField(fe.Field(), fe.Translate(translator))
	}
	return appErr
}

// RenterDates parses the optional tenancy dates; unparseable values are nil.
func (f UnitForm) RenterDates() (start, end *time.Time) {
	parse := func(s string) *time.Time {
		if s == "" {
			return nil
		}
		t, err := types.ParseDate(s)
		if err != nil {
			return nil
		}
		return &t
	}
	return parse(f.RenterStartDate), parse(f.RenterEndDate)
}
