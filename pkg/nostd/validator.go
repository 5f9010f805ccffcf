package nostd

import (
	"errors"
	"fmt"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

// CustomValidator echo请求参数校验器
type CustomValidator struct {
	Validator  *validator.Validate
	translator ut.Translator
}

// TransInit 初始化翻译器
func (cv *CustomValidator) TransInit() error {
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)

	translator, ok := uni.GetTranslator("en")
	if !ok {
		return fmt.Errorf("translator not found: en")
	}
	cv.translator = translator

	return enTranslations.RegisterDefaultTranslations(cv.Validator, translator)
}

// Validate 校验请求参数，返回翻译后的首个错误
func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.Validator.Struct(i); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) && len(errs) > 0 {
			return fmt.Errorf("%s", errs[0].Translate(cv.translator))
		}
		return err
	}
	return nil
}
