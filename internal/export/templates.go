package export

import (
	"bytes"
	"html/template"
)

var questionsTemplate = template.Must(template.New("questions").Parse(questionsTemplateHTML))

// templateData holds data for question list rendering
type templateData struct {
	ComponentName string
	SpaceTitle    string
	Questions     []templateQuestion
}

type templateQuestion struct {
	Reference    string
	Title        string
	Body         string
	State        string
	Answer       string
	Authors      string
	Votes        int
	Endorsements int
}

// RenderQuestionsHTML renders the printable question list.
func RenderQuestionsHTML(component ComponentInfo, questions []QuestionInfo) (string, error) {
	data := templateData{
		ComponentName: component.Name,
		SpaceTitle:    component.SpaceTitle,
		Questions:     make([]templateQuestion, 0, len(questions)),
	}
	for _, q := range questions {
		authors := ""
		for i, a := range q.Authors {
			if i > 0 {
				authors += ", "
			}
			authors += a
		}
		data.Questions = append(data.Questions, templateQuestion{
			Reference:    q.Reference,
			Title:        q.Title,
			Body:         q.Body,
			State:        displayState(q.State),
			Answer:       q.Answer,
			Authors:      authors,
			Votes:        q.VoteCount,
			Endorsements: q.EndorsementCount,
		})
	}

	var buf bytes.Buffer
	if err := questionsTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const questionsTemplateHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.ComponentName}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .question { page-break-inside: avoid; margin: 1.5rem 0; }
    .question h2 { margin-bottom: 0.25rem; }
    .reference { color: #666; font-size: 0.85em; }
    .state { display: inline-block; padding: 2px 8px; border-radius: 4px; background: #eee; font-size: 0.85em; text-transform: uppercase; }
    .answer { background: #f5f5f5; padding: 1rem; margin-top: 0.5rem; border-left: 3px solid #333; }
    .counts { color: #666; font-size: 0.85em; }
  </style>
</head>
<body>
  <h1>{{.ComponentName}}</h1>
  <div class="meta">{{.SpaceTitle}}</div>
  {{range .Questions}}
  <div class="question">
    <h2>{{.Title}}</h2>
    <div class="reference">{{.Reference}} <span class="state">{{.State}}</span></div>
    <p>{{.Body}}</p>
    {{if .Answer}}<div class="answer">{{.Answer}}</div>{{end}}
    <div class="counts">{{.Authors}} | {{.Votes}} votes | {{.Endorsements}} endorsements</div>
  </div>
  {{end}}
</body>
</html>`
