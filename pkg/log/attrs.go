package log

import "log/slog"

func TranslationID[T ~string](id T) slog.Attr {
	return slog.String("translation_id", string(id))
}

func WebhookID[T ~string](id T) slog.Attr {
	return slog.String("webhook_id", string(id))
}

func ReleaseID[T ~string](id T) slog.Attr {
	return slog.String("release_id", string(id))
}

func BatchID[T ~string](id T) slog.Attr {
	return slog.String("batch_id", string(id))
}

func Event[T ~string](name T) slog.Attr {
	return slog.String("event", string(name))
}

func Status[T ~string](status T) slog.Attr {
	return slog.String("status", string(status))
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}

func ErrorString(msg string) slog.Attr {
	return slog.String("error", msg)
}
