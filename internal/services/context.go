package services

import "context"

// contextField names one string identifier carried on a context. Blank values
// are never stored, so a lookup that succeeds always yields a usable value.
type contextField int

const (
	recordIDField contextField = iota
	stageField
	requestIDField
	runTokenField
)

func (f contextField) attach(ctx context.Context, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, f, value)
}

func (f contextField) lookup(ctx context.Context) (string, bool) {
	value, _ := ctx.Value(f).(string)
	return value, value != ""
}

// WithRecordID tags ctx with the video record being processed.
func WithRecordID(ctx context.Context, id string) context.Context {
	return recordIDField.attach(ctx, id)
}

func RecordIDFromContext(ctx context.Context) (string, bool) { return recordIDField.lookup(ctx) }

// WithStage tags ctx with the job name.
func WithStage(ctx context.Context, stage string) context.Context {
	return stageField.attach(ctx, stage)
}

func StageFromContext(ctx context.Context) (string, bool) { return stageField.lookup(ctx) }

// WithRequestID tags ctx with the HTTP request id that triggered the work.
func WithRequestID(ctx context.Context, id string) context.Context {
	return requestIDField.attach(ctx, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) { return requestIDField.lookup(ctx) }

// WithRunToken tags ctx with the token of the pipeline cycle it belongs to.
func WithRunToken(ctx context.Context, token string) context.Context {
	return runTokenField.attach(ctx, token)
}

func RunTokenFromContext(ctx context.Context) (string, bool) { return runTokenField.lookup(ctx) }
