package validation

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	apperrors "ticketera/internal/errors"
	"ticketera/internal/external"
	"ticketera/internal/models"
	"ticketera/internal/payload"
)

// ContractBackend - вызовы бэкенда, которые проверяет валидатор контракта
type ContractBackend interface {
	Login(ctx context.Context, email, password string) (*models.LoginData, error)
	ListEvents(ctx context.Context, creds external.Credentials) ([]models.Event, error)
	GetSale(ctx context.Context, creds external.Credentials, saleNumber string) (json.RawMessage, error)
}

// Options - учетные данные и продажа для проверки
type Options struct {
	Email      string
	Password   string
	EventID    string
	SaleNumber string
}

// Check - результат одной проверки
type Check struct {
	Name    string
	Passed  bool
	Skipped bool
	Detail  string
}

type Report struct {
	Checks []Check
}

func (r *Report) Passed() bool {
	for _, c := range r.Checks {
		if !c.Passed && !c.Skipped {
			return false
		}
	}
	return true
}

func (r *Report) add(name string, passed bool, detail string, args ...any) {
	r.Checks = append(r.Checks, Check{Name: name, Passed: passed, Detail: fmt.Sprintf(detail, args...)})
}

func (r *Report) skip(name, reason string) {
	r.Checks = append(r.Checks, Check{Name: name, Skipped: true, Detail: reason})
}

// ContractValidator - проверка, что бэкенд отвечает в ожидаемых форматах
type ContractValidator struct {
	backend ContractBackend
	opts    Options
}

func NewContractValidator(backend ContractBackend, opts Options) *ContractValidator {
	return &ContractValidator{backend: backend, opts: opts}
}

// ValidateAll проходит логин, список событий и (если задана) продажу
func (v *ContractValidator) ValidateAll(ctx context.Context) *Report {
	report := &Report{}

	_, err := v.backend.Login(ctx, v.opts.Email, v.opts.Password+"-invalid")
	switch {
	case errors.Is(err, apperrors.ErrAuthentication):
		report.add("login rejects bad credentials", true, "%s", apperrors.Message(err))
	case err == nil:
		report.add("login rejects bad credentials", false, "login succeeded with a wrong password")
	default:
		report.add("login rejects bad credentials", false, "expected %s, got %s: %v",
			apperrors.Code(apperrors.ErrAuthentication), apperrors.Code(err), err)
	}

	login, err := v.backend.Login(ctx, v.opts.Email, v.opts.Password)
	if err != nil {
		report.add("login", false, "%s: %v", apperrors.Code(err), err)
		return report
	}
	report.add("login", login.Validator.ID != "", "validator=%s events=%d", login.Validator.ID, len(login.Eventos))

	events, err := v.backend.ListEvents(ctx, external.Credentials{Token: login.Token})
	if err != nil {
		report.add("events", false, "%s: %v", apperrors.Code(err), err)
	} else {
		report.add("events", true, "%d assigned", len(events))
	}

	eventID := v.opts.EventID
	if eventID == "" && len(login.Eventos) == 1 {
		eventID = login.Eventos[0].ID.String()
	}

	if v.opts.SaleNumber == "" {
		report.skip("sale", "no sale number given")
		return report
	}
	if eventID == "" {
		report.skip("sale", "no event to validate for")
		return report
	}

	raw, err := v.backend.GetSale(ctx, external.Credentials{Token: login.Token, EventID: eventID}, v.opts.SaleNumber)
	if err != nil {
		report.add("sale", false, "%s: %v", apperrors.Code(err), err)
		return report
	}

	session, err := payload.Normalize(raw)
	if err != nil {
		report.add("sale normalizes", false, "%v", err)
		return report
	}
	report.add("sale normalizes", true, "shape=%s attendees=%d food=%d activities=%d",
		session.Shape, len(session.Attendees), len(session.Food), len(session.Activities))

	return report
}

// Run - точка входа команды validate; возвращает код выхода
func Run(args []string) int {
	return run(args, os.Stdout)
}

func run(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(out)

	baseURL := fs.String("url", os.Getenv("BACKEND_URL"), "Backend base URL")
	timeout := fs.Duration("timeout", 10*time.Second, "Request timeout")
	opts := Options{}
	fs.StringVar(&opts.Email, "email", os.Getenv("VALIDATOR_EMAIL"), "Validator e-mail")
	fs.StringVar(&opts.Password, "password", os.Getenv("VALIDATOR_PASSWORD"), "Validator password")
	fs.StringVar(&opts.EventID, "event", "", "Event ID for the sale check")
	fs.StringVar(&opts.SaleNumber, "sale", "", "Sale number to fetch and normalize")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *baseURL == "" || opts.Email == "" || opts.Password == "" {
		fmt.Fprintln(out, "url, email and password are required")
		return 2
	}

	logger := log.New(out, "", 0)
	logger.Printf("Checking backend contract at %s", *baseURL)

	client := external.NewBackendClient(external.BackendConfig{BaseURL: *baseURL, Timeout: *timeout})
	report := NewContractValidator(client, opts).ValidateAll(context.Background())

	for _, c := range report.Checks {
		mark := "✅"
		switch {
		case c.Skipped:
			mark = "⏭️"
		case !c.Passed:
			mark = "❌"
		}
		logger.Printf("%s %s: %s", mark, c.Name, c.Detail)
	}

	if !report.Passed() {
		logger.Println("❌ Контракт бэкенда не соблюдается")
		return 1
	}
	logger.Println("✅ Контракт бэкенда соблюдается")
	return 0
}
