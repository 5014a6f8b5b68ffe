package types

import "github.com/angelmondragon/storefront-backend/pkg/enums"

// Notice is a buyer-facing message returned alongside a successful result.
type Notice struct {
	Level   enums.NoticeLevel `json:"level"`
	Message string            `json:"message"`
}

// Info builds an informational notice.
func Info(message string) Notice {
	return Notice{Level: enums.NoticeInfo, Message: message}
}

// Success builds a success notice.
func Success(message string) Notice {
	return Notice{Level: enums.NoticeSuccess, Message: message}
}

// Warning builds a warning notice.
func Warning(message string) Notice {
	return Notice{Level: enums.NoticeWarning, Message: message}
}
