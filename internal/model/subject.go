package model

// Subject categories a question can be filed under. SubjectUnclassified is the
// fallback when no pattern or range matches.
const (
	SubjectPathology    = "수목병리학"
	SubjectEntomology   = "수목해충학"
	SubjectPhysiology   = "수목생리학"
	SubjectManagement   = "수목관리학"
	SubjectSoil         = "토양학"
	SubjectForestry     = "산림일반"
	SubjectUnclassified = "미분류"
)
