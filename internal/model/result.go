package model

// RuleError is a single failed Schematron assertion.
type RuleError struct {
	RuleID  string `json:"ruleId"`
	Test    string `json:"test"`
	Message string `json:"message"`
}

// SuppressionInfo summarizes what the active profile filtered out.
type SuppressionInfo struct {
	Profile          string      `json:"profile"`
	TotalRawErrors   int         `json:"totalRawErrors"`
	SuppressedCount  int         `json:"suppressedCount"`
	SuppressedErrors []RuleError `json:"suppressedErrors"`
}

// ValidationResult carries schema and rule validation outcomes for one document.
type ValidationResult struct {
	DetectedDocumentType string `json:"detectedDocumentType"`
	AppliedXSD           string `json:"appliedXsd,omitempty"`
	AppliedXSDPath       string `json:"appliedXsdPath,omitempty"`
	AppliedRuleSet       string `json:"appliedSchematron,omitempty"`
	AppliedRuleSetPath   string `json:"appliedSchematronPath,omitempty"`

	ValidSchema     bool        `json:"validSchema"`
	ValidSchematron bool        `json:"validSchematron"`
	SchemaErrors    []string    `json:"schemaValidationErrors"`
	RuleErrors      []RuleError `json:"schematronValidationErrors"`

	Suppression *SuppressionInfo `json:"suppressionInfo,omitempty"`
}

// TransformResult is the outcome of one template transformation.
type TransformResult struct {
	Output           []byte
	DefaultUsed      bool
	EmbeddedUsed     bool
	CustomXSLTError  string
	WatermarkApplied bool
	DurationMs       int64
	OutputSize       int
}
