package store

import "time"

// Session status values.
const (
	SessionActive    = "Active"
	SessionCompleted = "Completed"
)

// Participant roles.
const (
	RoleOwner     = "Owner"
	RoleEditor    = "Editor"
	RoleViewer    = "Viewer"
	RoleCommenter = "Commenter"
)

// Lock types.
const (
	LockExclusive = "Exclusive"
	LockShared    = "Shared"
)

// Version change types.
const (
	ChangeInitialVersion = "InitialVersion"
	ChangePatchUpdate    = "PatchUpdate"
	ChangeMinorUpdate    = "MinorUpdate"
	ChangeMajorUpdate    = "MajorUpdate"
	ChangeRevision       = "Revision"
)

// Revision approval statuses.
const (
	ApprovalPending  = "Pending"
	ApprovalApproved = "Approved"
	ApprovalRejected = "Rejected"
)

// Revision change operations.
const (
	OpAdd    = "Add"
	OpModify = "Modify"
	OpDelete = "Delete"
)

// Comment types. The field is free-form; these are the conventional values.
const (
	CommentGeneral    = "general"
	CommentQuestion   = "question"
	CommentIssue      = "issue"
	CommentSuggestion = "suggestion"
)

type EditingSession struct {
	SessionID    string               `json:"sessionId"`
	DocumentID   string               `json:"documentId"`
	VersionID    string               `json:"versionId"`
	InitiatedBy  string               `json:"initiatedBy"`
	SessionType  string               `json:"sessionType"`
	Status       string               `json:"status"`
	StartTime    time.Time            `json:"startTime"`
	EndTime      *time.Time           `json:"endTime,omitempty"`
	Participants []SessionParticipant `json:"participants"`
	Locks        []EditingLock        `json:"locks"`
}

type SessionParticipant struct {
	UserID         string     `json:"userId"`
	UserName       string     `json:"userName"`
	UserEmail      string     `json:"userEmail,omitempty"`
	Role           string     `json:"role"`
	CurrentSection string     `json:"currentSection,omitempty"`
	JoinedAt       time.Time  `json:"joinedAt"`
	LeftAt         *time.Time `json:"leftAt,omitempty"`
	IsActive       bool       `json:"isActive"`
}

type EditingLock struct {
	LockID      string    `json:"lockId"`
	SectionPath string    `json:"sectionPath"`
	LockedBy    string    `json:"lockedBy"`
	LockExpires time.Time `json:"lockExpires"`
	Type        string    `json:"type"`
}

// DocumentComment is a threaded comment. Replies form a tree of unbounded
// depth; comments are never deleted, only resolved.
type DocumentComment struct {
	CommentID   string             `json:"commentId"`
	DocumentID  string             `json:"documentId"`
	VersionID   string             `json:"versionId"`
	SectionPath string             `json:"sectionPath"`
	Content     string             `json:"content"`
	AuthorID    string             `json:"authorId"`
	AuthorName  string             `json:"authorName"`
	Type        string             `json:"type"`
	CreatedAt   time.Time          `json:"createdAt"`
	ResolvedAt  *time.Time         `json:"resolvedAt,omitempty"`
	ResolvedBy  string             `json:"resolvedBy,omitempty"`
	Replies     []*DocumentComment `json:"replies"`
}

// DocumentVersion is immutable once created. Editing a document always
// produces a new version; the version log for a document is append-only.
type DocumentVersion struct {
	VersionID     string    `json:"versionId"`
	DocumentID    string    `json:"documentId"`
	VersionNumber string    `json:"versionNumber"`
	CreatedBy     string    `json:"createdBy"`
	CreatedDate   time.Time `json:"createdDate"`
	Comments      string    `json:"comments"`
	ChangeType    string    `json:"changeType"`
	ContentHash   string    `json:"contentHash"`
	SizeBytes     int64     `json:"sizeBytes"`
	Format        string    `json:"format"`
	BlobReference string    `json:"blobReference"`
	ChangeSummary []string  `json:"changeSummary"`
}

type DocumentRevision struct {
	RevisionID     string           `json:"revisionId"`
	DocumentID     string           `json:"documentId"`
	VersionID      string           `json:"versionId"`
	RevisedBy      string           `json:"revisedBy"`
	RevisionReason string           `json:"revisionReason"`
	Changes        []RevisionChange `json:"changes"`
	ApprovalStatus string           `json:"approvalStatus"`
	ApprovedBy     string           `json:"approvedBy,omitempty"`
	ApprovalDate   *time.Time       `json:"approvalDate,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
}

// CommitInfo describes a commit in the optional git archive.
type CommitInfo struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

type RevisionChange struct {
	Operation         string    `json:"operation"`
	ChangeDescription string    `json:"changeDescription"`
	OldContent        string    `json:"oldContent,omitempty"`
	NewContent        string    `json:"newContent,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
	ChangedBy         string    `json:"changedBy"`
}
