package tperror

// Transport level codes follow the interoperability API 2xxx family.
var (
	ServerError    = TPError{Code: "2001", Description: "Internal server error"}
	ServerTimedOut = TPError{Code: "2004", Description: "Server timed out"}
)

// Account linking codes, 72xx family.
var (
	GenericLinkingError           = TPError{Code: "7200", Description: "Generic third-party account linking error"}
	ConsentRequestValidationError = TPError{Code: "7203", Description: "Consent request validation failed"}
	AuthTokenNoResponse           = TPError{Code: "7204", Description: "No response received for auth token validation"}
	OTPValidationError            = TPError{Code: "7205", Description: "OTP failed validation"}
	OTPDeliveryError              = TPError{Code: "7206", Description: "FSP failed to send OTP to end user"}
	UnsupportedAuthChannel        = TPError{Code: "7207", Description: "Unsupported or unknown authentication channel"}
	SignedCredentialInvalid       = TPError{Code: "7208", Description: "Signed credential failed validation"}
	ConsentInvalid                = TPError{Code: "7209", Description: "Consent rejected by authorization service"}
	ConsentStoreError             = TPError{Code: "7210", Description: "FSP failed to store validated consent"}
)

// Transaction codes, 73xx family.
var (
	GenericTransactionError              = TPError{Code: "7300", Description: "Generic third-party transaction error"}
	TransactionRequestValidationError    = TPError{Code: "7301", Description: "Transaction request validation failed"}
	TransactionRequestNotificationError  = TPError{Code: "7302", Description: "Failed to notify acceptance of transaction request"}
	QuoteRequestError                    = TPError{Code: "7303", Description: "Failed to retrieve a quote for the transaction"}
	AuthorizationRequestError            = TPError{Code: "7304", Description: "Failed to obtain authorization for the transaction"}
	AuthorizationRejectedByUser          = TPError{Code: "7305", Description: "Authorization rejected by end user"}
	AuthorizationVerificationError       = TPError{Code: "7306", Description: "Authorization verification service error"}
	TransferRequestError                 = TPError{Code: "7307", Description: "Failed to execute the transfer"}
	TransactionCompletionNotifyError     = TPError{Code: "7308", Description: "Failed to notify transaction completion"}
	PartyLookupError                     = TPError{Code: "7309", Description: "Party lookup failed"}
	TransactionRequestNoResponse         = TPError{Code: "7310", Description: "No response received for transaction request"}
	AuthorizationRequestNoResponse       = TPError{Code: "7311", Description: "No authorization request received from payee FSP"}
	TransactionApprovalNoResponse        = TPError{Code: "7312", Description: "No response received for transaction approval"}
)
