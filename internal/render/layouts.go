package render

import (
	"time"

	"gorm.io/datatypes"

	"cvbuilder/internal/database"
)

// DefaultCVLayout 是未选择模板时的内置简历版式（A4）。
const DefaultCVLayout = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>{{.Title}}</title>
<style>
  @page { size: A4; margin: 18mm; }
  body { font-family: 'Helvetica Neue', Arial, sans-serif; font-size: 10.5pt; color: #222; }
  h1 { margin: 0; font-size: 22pt; }
  h2 { margin: 18px 0 6px; font-size: 12pt; border-bottom: 1px solid #999; text-transform: uppercase; }
  .contact { color: #555; margin-top: 4px; }
  .entry { margin-bottom: 8px; }
  .entry-head { display: flex; justify-content: space-between; font-weight: bold; }
  .muted { color: #666; }
  ul { margin: 4px 0 0 18px; padding: 0; }
</style>
</head>
<body>
<h1>{{.FullName}}</h1>
<div class="contact">
  {{.Email}}{{if .Phone}} · {{.Phone}}{{end}}{{if .Location}} · {{.Location}}{{end}}
  {{if .Website}} · {{.Website}}{{end}}{{if .LinkedIn}} · {{.LinkedIn}}{{end}}{{if .GitHub}} · {{.GitHub}}{{end}}
</div>
{{if .Summary}}<h2>Summary</h2><p>{{.Summary}}</p>{{end}}
{{with .Experiences}}<h2>Experience</h2>{{range .}}
<div class="entry">
  <div class="entry-head"><span>{{.JobTitle}} · {{.Company}}</span>
  <span class="muted">{{date .StartDate}} - {{if .IsCurrent}}Present{{else}}{{date .EndDate}}{{end}}</span></div>
  {{if .Description}}<p>{{.Description}}</p>{{end}}
  {{with list .Achievements}}<ul>{{range .}}<li>{{.}}</li>{{end}}</ul>{{end}}
</div>{{end}}{{end}}
{{with .Educations}}<h2>Education</h2>{{range .}}
<div class="entry">
  <div class="entry-head"><span>{{.Degree}}{{if .FieldOfStudy}}, {{.FieldOfStudy}}{{end}} · {{.Institution}}</span>
  <span class="muted">{{date .StartDate}} - {{if .IsCurrent}}Present{{else}}{{date .EndDate}}{{end}}</span></div>
  {{if .Grade}}<div class="muted">{{.Grade}}</div>{{end}}
</div>{{end}}{{end}}
{{with .Skills}}<h2>Skills</h2><p>{{range $i, $s := .}}{{if $i}}, {{end}}{{$s.Name}} ({{title $s.Level}}){{end}}</p>{{end}}
{{with .Projects}}<h2>Projects</h2>{{range .}}
<div class="entry"><div class="entry-head"><span>{{.Name}}</span><span class="muted">{{.URL}}</span></div>
  {{if .Description}}<p>{{.Description}}</p>{{end}}
  {{with list .Technologies}}<div class="muted">{{join . ", "}}</div>{{end}}
</div>{{end}}{{end}}
{{with .Certifications}}<h2>Certifications</h2><ul>{{range .}}<li>{{.Name}}{{if .Issuer}} · {{.Issuer}}{{end}}</li>{{end}}</ul>{{end}}
{{with .Languages}}<h2>Languages</h2><p>{{range $i, $l := .}}{{if $i}}, {{end}}{{$l.Name}} ({{title $l.Proficiency}}){{end}}</p>{{end}}
{{with .Awards}}<h2>Awards</h2><ul>{{range .}}<li>{{.Title}}{{if .Issuer}} · {{.Issuer}}{{end}}</li>{{end}}</ul>{{end}}
</body>
</html>`

// DefaultLetterLayout 是求职信的内置版式。
const DefaultLetterLayout = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>{{.JobTitle}}</title>
<style>
  @page { size: A4; margin: 25mm; }
  body { font-family: Georgia, serif; font-size: 11pt; line-height: 1.5; color: #222; }
  .meta { color: #666; margin-bottom: 24px; }
</style>
</head>
<body>
<div class="meta">{{.JobTitle}}{{if .CompanyName}} · {{.CompanyName}}{{end}}</div>
{{range lines .GeneratedLetter}}<p>{{.}}</p>
{{end}}
</body>
</html>`

// SampleCV 返回用于模板预览的示例简历。
func SampleCV() *database.CV {
	start := database.NewDate(2019, time.March, 1)
	end := database.NewDate(2016, time.June, 1)
	eduStart := database.NewDate(2012, time.September, 1)
	return &database.CV{
		Title:    "Sample CV",
		FullName: "Alex Morgan",
		Email:    "alex.morgan@example.com",
		Phone:    "+44 20 7946 0000",
		Location: "London, UK",
		Website:  "https://alexmorgan.dev",
		Summary:  "Backend engineer with seven years of experience building reliable APIs and data pipelines.",
		Experiences: []database.Experience{{
			Period:       database.Period{StartDate: &start, IsCurrent: true},
			JobTitle:     "Senior Software Engineer",
			Company:      "Northwind",
			Description:  "Led the payments platform team.",
			Achievements: datatypes.JSON(`["Reduced checkout latency by 40%","Mentored 4 engineers"]`),
		}},
		Educations: []database.Education{{
			Period:       database.Period{StartDate: &eduStart, EndDate: &end},
			Degree:       "BSc",
			FieldOfStudy: "Computer Science",
			Institution:  "University of Manchester",
			Grade:        "First Class",
		}},
		Skills: []database.Skill{
			{Name: "Go", Level: database.SkillExpert},
			{Name: "PostgreSQL", Level: database.SkillAdvanced},
			{Name: "Kubernetes", Level: database.SkillIntermediate},
		},
		Projects: []database.Project{{
			Name:         "Open-source rate limiter",
			URL:          "https://github.com/example/limiter",
			Technologies: datatypes.JSON(`["Go","Redis"]`),
		}},
		Languages: []database.Language{{Name: "English", Proficiency: database.LanguageNative}},
	}
}

// SampleLetter 返回用于求职信模板预览的示例数据。
func SampleLetter() *database.AICoverLetter {
	return &database.AICoverLetter{
		JobTitle:        "Backend Engineer",
		CompanyName:     "Northwind",
		Tone:            database.ToneProfessional,
		TemplateType:    "standard",
		GeneratedLetter: "Dear Hiring Manager,\n\nI am writing to apply for the Backend Engineer position.\n\nSincerely,\nAlex Morgan",
	}
}
