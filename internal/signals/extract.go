package signals

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/spigell/bewerbungs-agent/internal/models"
	"github.com/spigell/bewerbungs-agent/internal/textnorm"
	"github.com/spigell/bewerbungs-agent/internal/utils"
)

var (
	urlPattern     = regexp.MustCompile(`https?://[^\s<>"')\]]+`)
	subjectPrefix  = regexp.MustCompile(`(?i)^\s*((re|fwd?|aw|wg)\s*:\s*)*((new )?job ?alert|jobalert|neue[rs]? (stellenangebot|job)e?|stellenangebot|job ?empfehlung(en)?|new jobs?|neue jobs|recommended jobs?)\s*[:\-–|]\s*`)
	bulletPattern  = regexp.MustCompile(`^\s*([-*•▪◦‣●]|\d+[.)])\s+`)
	fieldSeparator = regexp.MustCompile(`^\s*([^:]{2,30}):\s*(.+)$`)
)

var requirementHeadings = []string{
	"requirements", "anforderungen", "your profile", "ihr profil", "dein profil",
	"qualifications", "qualifikationen", "skills", "must have", "was du mitbringst",
	"was sie mitbringen", "what you bring",
}

var locationLabels = []string{"location", "standort", "ort", "arbeitsort"}
var compensationLabels = []string{"salary", "gehalt", "compensation", "vergütung"}
var companyLabels = []string{"company", "unternehmen", "firma", "arbeitgeber"}
var roleLabels = []string{"position", "role", "stelle", "job title", "jobtitel"}

// ExtractJob builds a job from a job alert. Fields it cannot find stay empty
// except company and role, which fall back to the sender and subject.
func ExtractJob(sig *models.InboundSignal) *models.Job {
	fields := labelledFields(sig.Body)

	job := &models.Job{
		Source:       models.SourceInboundMail,
		Company:      utils.FirstNonEmpty(lookup(fields, companyLabels), senderName(sig.Sender), "Unknown company"),
		Role:         utils.FirstNonEmpty(lookup(fields, roleLabels), roleFromSubject(sig.Subject), "Position from email"),
		Description:  sig.Body,
		Requirements: requirementsBlock(sig.Body),
		Location:     lookup(fields, locationLabels),
		Compensation: lookup(fields, compensationLabels),
		URL:          urlPattern.FindString(sig.Body),
	}
	if sig.ID != "" {
		id := sig.ID
		job.SignalID = &id
	}
	return job
}

func roleFromSubject(subject string) string {
	return strings.TrimSpace(subjectPrefix.ReplaceAllString(subject, ""))
}

func senderName(sender string) string {
	sender = strings.TrimSpace(sender)
	if sender == "" {
		return ""
	}
	addr, err := mail.ParseAddress(sender)
	if err != nil {
		return sender
	}
	if addr.Name != "" {
		return addr.Name
	}
	at := strings.LastIndex(addr.Address, "@")
	if at < 0 {
		return addr.Address
	}
	domain := addr.Address[at+1:]
	if dot := strings.Index(domain, "."); dot > 0 {
		domain = domain[:dot]
	}
	return domain
}

func labelledFields(body string) map[string]string {
	fields := map[string]string{}
	for _, line := range strings.Split(body, "\n") {
		m := fieldSeparator.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key := textnorm.Fold(m[1])
		if _, ok := fields[key]; !ok {
			fields[key] = strings.TrimSpace(m[2])
		}
	}
	return fields
}

func lookup(fields map[string]string, labels []string) string {
	for _, l := range labels {
		if v, ok := fields[l]; ok && !urlPattern.MatchString(v) {
			return v
		}
	}
	return ""
}

// requirementsBlock returns the lines under a requirements heading up to the
// next blank line. Without a heading, bullet lines are used.
func requirementsBlock(body string) string {
	lines := strings.Split(body, "\n")

	for i, line := range lines {
		heading := strings.TrimRight(textnorm.Fold(line), ": ")
		if !isRequirementHeading(heading) {
			continue
		}
		// A heading followed by the list on the same line.
		if idx := strings.Index(line, ":"); idx >= 0 && strings.TrimSpace(line[idx+1:]) != "" {
			return strings.TrimSpace(line[idx+1:])
		}
		var block []string
		for _, next := range lines[i+1:] {
			if strings.TrimSpace(next) == "" {
				if len(block) == 0 {
					continue
				}
				break
			}
			block = append(block, strings.TrimSpace(next))
		}
		return strings.Join(block, "\n")
	}

	var bullets []string
	for _, line := range lines {
		if bulletPattern.MatchString(line) {
			bullets = append(bullets, strings.TrimSpace(line))
		}
	}
	return strings.Join(bullets, "\n")
}

func isRequirementHeading(folded string) bool {
	for _, h := range requirementHeadings {
		if folded == h || strings.HasPrefix(folded, h+":") {
			return true
		}
	}
	return false
}
