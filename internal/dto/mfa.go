package dto

type EnrollRequest struct {
	UserID       string `json:"userId"`
	Name         string `json:"name"`
	Method       string `json:"method"`
	Issuer       string `json:"issuer,omitempty"`
	AccountName  string `json:"accountName,omitempty"`
	PhoneNumber  string `json:"phoneNumber,omitempty"`
	EmailAddress string `json:"emailAddress,omitempty"`
}

type EnrollResponse struct {
	ConfigID        string `json:"configId"`
	Method          string `json:"method"`
	Enabled         bool   `json:"enabled"`
	Secret          string `json:"secret,omitempty"`
	ProvisioningURI string `json:"provisioningUri,omitempty"`
}

type VerifyTOTPRequest struct {
	UserID string `json:"userId"`
	Code   string `json:"code"`
}

type VerifyResponse struct {
	Valid  bool   `json:"valid"`
	Result string `json:"result,omitempty"`
}

type SendCodeRequest struct {
	UserID    string `json:"userId"`
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
}

type SendCodeResponse struct {
	CodeID    string `json:"codeId"`
	ExpiresIn int64  `json:"expiresIn"`
}

type VerifyCodeRequest struct {
	UserID    string `json:"userId"`
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
	Code      string `json:"code"`
}

type RecoveryCodesRequest struct {
	UserID string `json:"userId"`
	Count  int    `json:"count,omitempty"`
}

type RecoveryCodesResponse struct {
	Codes []string `json:"codes"`
}

type UseRecoveryCodeRequest struct {
	UserID string `json:"userId"`
	Code   string `json:"code"`
}
