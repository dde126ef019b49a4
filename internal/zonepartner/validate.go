package zonepartner

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const maxDeploymentNameLength = 14

var (
	awsAccountIDPattern = regexp.MustCompile(`^\d{12}$`)
	awsRegionPattern    = regexp.MustCompile(`^[a-z]{2}-[a-z]+-\d$`)

	validateOnce sync.Once
	validate     *validator.Validate
)

// ValidationError reports why a descriptor was rejected.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid zone partner: " + strings.Join(e.Problems, "; ")
}

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("deployment_name", func(fl validator.FieldLevel) bool {
			return ValidateDeploymentName(fl.Field().String()) == nil
		})
		_ = validate.RegisterValidation("partner_id", func(fl validator.FieldLevel) bool {
			_, err := ParsePartnerID(fl.Field().String())
			return err == nil
		})
		_ = validate.RegisterValidation("aws_account_id", func(fl validator.FieldLevel) bool {
			return awsAccountIDPattern.MatchString(fl.Field().String())
		})
		validate.RegisterStructValidation(zonePartnerStructLevel, ZonePartner{})
	})
	return validate
}

// ValidateDeploymentName accepts 1-14 alphanumeric characters separated by
// single interior hyphens.
func ValidateDeploymentName(name string) error {
	if len(name) < 1 || len(name) > maxDeploymentNameLength {
		return fmt.Errorf("deployment name must be between 1 and %d characters long", maxDeploymentNameLength)
	}
	for _, r := range name {
		if r != '-' && (r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r))) {
			return errors.New("deployment name can only contain alphanumeric characters and hyphens")
		}
	}
	if strings.Contains(name, "--") {
		return errors.New("deployment name cannot contain consecutive hyphens")
	}
	if strings.HasPrefix(name, "-") || strings.HasSuffix(name, "-") {
		return errors.New("deployment name cannot start or end with a hyphen")
	}
	return nil
}

func zonePartnerStructLevel(sl validator.StructLevel) {
	zp := sl.Current().Interface().(ZonePartner)
	v := zp.Variables

	if v.MinNodes > v.MaxNodes {
		sl.ReportError(v.MinNodes, "min_nodes", "MinNodes", "lte_max_nodes", "")
	}
	if v.DesiredNodes < v.MinNodes || v.DesiredNodes > v.MaxNodes {
		sl.ReportError(v.DesiredNodes, "desired_nodes", "DesiredNodes", "between_min_max", "")
	}

	if zp.Cloud == CloudAWS {
		if zp.AccountID == "" {
			sl.ReportError(zp.AccountID, "account_id", "AccountID", "required_for_aws", "")
		}
		if !awsRegionPattern.MatchString(v.Region) {
			sl.ReportError(v.Region, "region", "Region", "aws_region", "")
		}
	} else if zp.AccountID != "" {
		sl.ReportError(zp.AccountID, "account_id", "AccountID", "empty_for_non_aws", "")
	}
}

// Validate checks every descriptor invariant and returns a *ValidationError
// listing all violations.
func Validate(zp *ZonePartner) error {
	err := validatorInstance().Struct(zp)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, describe(fe))
	}
	return &ValidationError{Problems: problems}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "deployment_name":
		return ValidateDeploymentName(fmt.Sprint(fe.Value())).Error()
	case "aws_account_id":
		return "AWS account ID must be exactly 12 digits"
	case "required_for_aws":
		return "account ID is required for AWS"
	case "empty_for_non_aws":
		return "account ID should be empty for non-AWS clouds"
	case "aws_region":
		return "invalid AWS region format"
	case "lte_max_nodes":
		return "min_nodes cannot be greater than max_nodes"
	case "between_min_max":
		return "desired_nodes must be between min_nodes and max_nodes"
	case "partner_id":
		return ErrInvalidPartnerID.Error()
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), fe.Param())
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag())
	}
}
