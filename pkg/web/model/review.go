package model

import (
	"time"

	reviewmodel "api-yamdb/pkg/core/review/model"
)

type (
	ReviewRes struct {
		ID      int64     `json:"id"`
		Text    string    `json:"text"`
		Author  string    `json:"author"`
		Score   int       `json:"score"`
		PubDate time.Time `json:"pub_date"`
		Title   int64     `json:"title"`
	}

	CommentRes struct {
		ID      int64     `json:"id"`
		Text    string    `json:"text"`
		Author  string    `json:"author"`
		PubDate time.Time `json:"pub_date"`
	}
)

func NewReviewRes(r reviewmodel.Review) ReviewRes {
	return ReviewRes{
		ID:      r.ID,
		Text:    r.Text,
		Author:  r.AuthorName(),
		Score:   r.Score,
		PubDate: r.PubDate,
		Title:   r.TitleID,
	}
}

func NewReviewList(reviews []reviewmodel.Review) []ReviewRes {
	out := make([]ReviewRes, 0, len(reviews))
	for _, r := range reviews {
		out = append(out, NewReviewRes(r))
	}
	return out
}

func NewCommentRes(c reviewmodel.Comment) CommentRes {
	return CommentRes{
		ID:      c.ID,
		Text:    c.Text,
		Author:  c.AuthorName(),
		PubDate: c.PubDate,
	}
}

func NewCommentList(comments []reviewmodel.Comment) []CommentRes {
	out := make([]CommentRes, 0, len(comments))
	for _, c := range comments {
		out = append(out, NewCommentRes(c))
	}
	return out
}
