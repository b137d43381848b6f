package app

import (
	"context"
	"sort"
	"strings"

	"redline/internal/search"
	"redline/internal/store"
	"redline/internal/util"
)

// AddComment opens a new top-level comment thread on a document section.
func (s *Service) AddComment(ctx context.Context, documentID, versionID, sectionPath, content, authorID, authorName, commentType string) (store.DocumentComment, error) {
	documentID = strings.TrimSpace(documentID)
	content = strings.TrimSpace(content)
	if documentID == "" {
		return store.DocumentComment{}, invalid("documentId is required")
	}
	if content == "" {
		return store.DocumentComment{}, invalid("content is required")
	}
	if strings.TrimSpace(authorID) == "" {
		return store.DocumentComment{}, invalid("authorId is required")
	}
	if commentType == "" {
		commentType = store.CommentGeneral
	}

	comment := &store.DocumentComment{
		CommentID:   util.NewID("cmt"),
		DocumentID:  documentID,
		VersionID:   strings.TrimSpace(versionID),
		SectionPath: strings.TrimSpace(sectionPath),
		Content:     content,
		AuthorID:    authorID,
		AuthorName:  authorName,
		Type:        commentType,
		CreatedAt:   s.now(),
		Replies:     []*store.DocumentComment{},
	}

	s.commentsMu.Lock()
	s.commentRoots[documentID] = append(s.commentRoots[documentID], comment)
	s.commentIndex[comment.CommentID] = commentEntry{comment: comment, root: comment}
	snapshot := cloneComment(comment)
	s.commentsMu.Unlock()

	s.persist(ctx, commentPath(documentID, comment.CommentID), snapshot)
	s.indexComment(snapshot)
	return snapshot, nil
}

// ReplyToComment appends a leaf reply under the target comment, anywhere in
// the tree. Lookups go through the comment index; the recursive walk only
// runs for threads adopted from a snapshot before their index entries exist.
func (s *Service) ReplyToComment(ctx context.Context, commentID, content, authorID, authorName string) (store.DocumentComment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return store.DocumentComment{}, invalid("content is required")
	}
	if strings.TrimSpace(authorID) == "" {
		return store.DocumentComment{}, invalid("authorId is required")
	}

	s.commentsMu.Lock()
	entry, ok := s.commentIndex[commentID]
	if !ok {
		entry, ok = s.findComment(commentID)
	}
	if !ok {
		s.commentsMu.Unlock()
		return store.DocumentComment{}, notFound("comment %s not found", commentID)
	}

	parent := entry.comment
	reply := &store.DocumentComment{
		CommentID:   util.NewID("cmt"),
		DocumentID:  parent.DocumentID,
		VersionID:   parent.VersionID,
		SectionPath: parent.SectionPath,
		Content:     content,
		AuthorID:    authorID,
		AuthorName:  authorName,
		Type:        store.CommentGeneral,
		CreatedAt:   s.now(),
		Replies:     []*store.DocumentComment{},
	}
	parent.Replies = append(parent.Replies, reply)
	s.commentIndex[reply.CommentID] = commentEntry{comment: reply, root: entry.root}
	replySnapshot := cloneComment(reply)
	rootSnapshot := cloneComment(entry.root)
	s.commentsMu.Unlock()

	s.persist(ctx, commentPath(rootSnapshot.DocumentID, rootSnapshot.CommentID), rootSnapshot)
	s.indexComment(replySnapshot)
	return replySnapshot, nil
}

// ResolveComment stamps the resolution fields. Resolving an unknown comment
// is a no-op; resolution must be safe to repeat.
func (s *Service) ResolveComment(ctx context.Context, commentID, resolvedBy string) error {
	s.commentsMu.Lock()
	entry, ok := s.commentIndex[commentID]
	if !ok {
		entry, ok = s.findComment(commentID)
	}
	if !ok {
		s.commentsMu.Unlock()
		return nil
	}

	now := s.now()
	entry.comment.ResolvedAt = &now
	entry.comment.ResolvedBy = resolvedBy
	rootSnapshot := cloneComment(entry.root)
	s.commentsMu.Unlock()

	s.persist(ctx, commentPath(rootSnapshot.DocumentID, rootSnapshot.CommentID), rootSnapshot)
	return nil
}

// GetComments lists a document's comment threads, oldest first. versionID
// narrows to an exact version; resolved threads are excluded unless asked for.
func (s *Service) GetComments(_ context.Context, documentID, versionID string, includeResolved bool) ([]store.DocumentComment, error) {
	s.commentsMu.Lock()
	defer s.commentsMu.Unlock()

	comments := make([]store.DocumentComment, 0)
	for _, comment := range s.commentRoots[documentID] {
		if versionID != "" && comment.VersionID != versionID {
			continue
		}
		if !includeResolved && comment.ResolvedAt != nil {
			continue
		}
		comments = append(comments, cloneComment(comment))
	}
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
	return comments, nil
}

// findComment walks every thread depth-first looking for the id, and repairs
// the index entry on a hit. Callers must hold commentsMu.
func (s *Service) findComment(commentID string) (commentEntry, bool) {
	for _, roots := range s.commentRoots {
		for _, root := range roots {
			if target := findInTree(root, commentID); target != nil {
				entry := commentEntry{comment: target, root: root}
				s.commentIndex[commentID] = entry
				return entry, true
			}
		}
	}
	return commentEntry{}, false
}

func findInTree(comment *store.DocumentComment, commentID string) *store.DocumentComment {
	if comment.CommentID == commentID {
		return comment
	}
	for _, reply := range comment.Replies {
		if target := findInTree(reply, commentID); target != nil {
			return target
		}
	}
	return nil
}

func (s *Service) indexComment(comment store.DocumentComment) {
	if s.search == nil {
		return
	}
	s.search.IndexComment(search.CommentRecord{
		ID:          comment.CommentID,
		DocumentID:  comment.DocumentID,
		VersionID:   comment.VersionID,
		SectionPath: comment.SectionPath,
		Content:     comment.Content,
		Author:      comment.AuthorName,
	})
}

func cloneComment(comment *store.DocumentComment) store.DocumentComment {
	snapshot := *comment
	if comment.ResolvedAt != nil {
		resolved := *comment.ResolvedAt
		snapshot.ResolvedAt = &resolved
	}
	snapshot.Replies = make([]*store.DocumentComment, 0, len(comment.Replies))
	for _, reply := range comment.Replies {
		clone := cloneComment(reply)
		snapshot.Replies = append(snapshot.Replies, &clone)
	}
	return snapshot
}
