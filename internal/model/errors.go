// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, channel, program, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest          = "INVALID_REQUEST"
	ErrCodeInvalidTimeFormat       = "INVALID_TIME_FORMAT"
	ErrCodeInvalidDuration         = "INVALID_DURATION"
	ErrCodeInvalidProgramType      = "INVALID_PROGRAM_TYPE"
	ErrCodeInvalidProgramStatus    = "INVALID_PROGRAM_STATUS"
	ErrCodeInvalidURL              = "INVALID_URL"
	ErrCodeTitleRequired           = "TITLE_REQUIRED"
	ErrCodeChannelNameRequired     = "CHANNEL_NAME_REQUIRED"
	ErrCodeChannelNotFound         = "CHANNEL_NOT_FOUND"
	ErrCodeProgramNotFound         = "PROGRAM_NOT_FOUND"
	ErrCodeProgramAlreadyExists    = "PROGRAM_ALREADY_EXISTS"
	ErrCodeCannotDeleteLastChannel = "CANNOT_DELETE_LAST_CHANNEL"
	ErrCodeSSRFBlocked             = "SSRF_BLOCKED"
	ErrCodeFetchFailed             = "FETCH_FAILED"
	ErrCodeParseFailed             = "PARSE_FAILED"
	ErrCodeFeedNotDetected         = "FEED_NOT_DETECTED"
	ErrCodeScheduleBusy            = "SCHEDULE_BUSY"
)

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewInvalidTimeFormatError は開始時刻の形式エラーを生成する。
func NewInvalidTimeFormatError(value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTimeFormat,
		Message:  fmt.Sprintf("無効な時刻です: %q", value),
		Category: "validation",
		Action:   "開始時刻は00:00から23:59の範囲でHH:MM形式で指定してください。",
	}
}

// NewInvalidDurationError は放送時間が負の場合のエラーを生成する。
func NewInvalidDurationError(minutes int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDuration,
		Message:  fmt.Sprintf("無効な放送時間です: %d分", minutes),
		Category: "validation",
		Action:   "放送時間は0分以上の整数で指定してください。",
	}
}

// NewInvalidProgramTypeError は番組種別が不正な場合のエラーを生成する。
func NewInvalidProgramTypeError(value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidProgramType,
		Message:  fmt.Sprintf("無効な番組種別です: %s", value),
		Category: "validation",
		Action:   "番組種別には content、ad、news、bumper のいずれかを指定してください。",
	}
}

// NewInvalidProgramStatusError は放送状態が不正な場合のエラーを生成する。
func NewInvalidProgramStatusError(value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidProgramStatus,
		Message:  fmt.Sprintf("無効な放送状態です: %s", value),
		Category: "validation",
		Action:   "放送状態には scheduled、playing、completed、error のいずれかを指定してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewTitleRequiredError は番組タイトル未入力エラーを生成する。
func NewTitleRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeTitleRequired,
		Message:  "番組タイトルが入力されていません。",
		Category: "validation",
		Action:   "番組タイトルを入力してください。",
	}
}

// NewChannelNameRequiredError はチャンネル名未入力エラーを生成する。
func NewChannelNameRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeChannelNameRequired,
		Message:  "チャンネル名が入力されていません。",
		Category: "validation",
		Action:   "チャンネル名を入力してください。",
	}
}

// NewChannelNotFoundError はチャンネルが見つからない場合のエラーを生成する。
func NewChannelNotFoundError(channelID string) *APIError {
	return &APIError{
		Code:     ErrCodeChannelNotFound,
		Message:  fmt.Sprintf("指定されたチャンネルが見つかりません: %s", channelID),
		Category: "channel",
		Action:   "チャンネルIDを確認してください。",
	}
}

// NewProgramNotFoundError は番組が見つからない場合のエラーを生成する。
func NewProgramNotFoundError(programID string) *APIError {
	return &APIError{
		Code:     ErrCodeProgramNotFound,
		Message:  fmt.Sprintf("指定された番組が見つかりません: %s", programID),
		Category: "program",
		Action:   "番組IDを確認してください。",
	}
}

// NewProgramAlreadyExistsError は番組IDが重複している場合のエラーを生成する。
func NewProgramAlreadyExistsError(programID string) *APIError {
	return &APIError{
		Code:     ErrCodeProgramAlreadyExists,
		Message:  fmt.Sprintf("同じIDの番組が既に存在します: %s", programID),
		Category: "program",
		Action:   "IDを指定せずに登録するか、別のIDを指定してください。",
	}
}

// NewCannotDeleteLastChannelError は最後の1チャンネルを削除しようとした場合のエラーを生成する。
func NewCannotDeleteLastChannelError() *APIError {
	return &APIError{
		Code:     ErrCodeCannotDeleteLastChannel,
		Message:  "最後のチャンネルは削除できません。",
		Category: "channel",
		Action:   "別のチャンネルを作成してから削除してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewFetchFailedError はフェッチ失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("URLの取得に失敗しました: %s", reason),
		Category: "program",
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}

// NewParseFailedError はフィードのパース失敗エラーを生成する。
func NewParseFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeParseFailed,
		Message:  "フィードの解析に失敗しました。",
		Category: "program",
		Action:   "有効なRSS/Atomフィードかどうか確認してください。",
	}
}

// NewFeedNotDetectedError はURLからフィードを検出できなかった場合のエラーを生成する。
func NewFeedNotDetectedError(rawURL string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotDetected,
		Message:  fmt.Sprintf("フィードが見つかりませんでした: %s", rawURL),
		Category: "program",
		Action:   "RSS/AtomフィードのURLを直接指定してください。",
	}
}

// NewScheduleBusyError は番組表の排他ロックを取得できなかった場合のエラーを生成する。
func NewScheduleBusyError() *APIError {
	return &APIError{
		Code:     ErrCodeScheduleBusy,
		Message:  "番組表は他の操作で更新中です。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
