package server

// sampleRecords populates an empty development backend.
var sampleRecords = map[string][]map[string]any{
	"feedback": {
		{"name": "Ada Lovelace", "email": "ada@example.com", "message": "The course page fails to load on mobile.", "category": "website", "rating": float64(2)},
		{"name": "Grace Hopper", "email": "grace@example.com", "message": "Great service from the support team overall.", "category": "service", "rating": float64(5), "status": "resolved"},
		{"name": "Linus Torvalds", "email": "linus@example.com", "message": "Website search is slow for long queries.", "category": "website", "rating": float64(3)},
		{"name": "Barbara Liskov", "email": "barbara@example.com", "message": "Loved the new course on distributed systems.", "category": "course", "rating": float64(5), "status": "reviewed"},
	},
	"contacts": {
		{"name": "Alan Turing", "email": "alan@example.com", "subject": "Partnership", "message": "We would like to discuss a partnership."},
		{"name": "Margaret Hamilton", "email": "margaret@example.com", "phone": "+1 555 0100", "subject": "Invoice question", "message": "Our last invoice lists the wrong address.", "status": "read"},
		{"name": "Ken Thompson", "email": "ken@example.com", "subject": "Press", "message": "Requesting an interview for our magazine.", "status": "replied"},
	},
	"documents": {
		{"title": "Service agreement", "description": "Standard client contract", "owner": "legal", "category": "contract", "status": "published"},
		{"title": "Privacy policy", "description": "Data handling policy", "owner": "legal", "category": "policy", "status": "published"},
		{"title": "Onboarding guide", "description": "First steps for new students", "owner": "success", "category": "guide"},
		{"title": "Refund request form", "owner": "finance", "category": "form", "url": "https://example.com/forms/refund"},
	},
	"tickets": {
		{"subject": "Cannot log in", "description": "Password reset email never arrives.", "requester": "ada", "email": "ada@example.com", "priority": "high", "category": "account"},
		{"subject": "Charged twice", "description": "Two charges for the March invoice.", "requester": "grace", "priority": "urgent", "category": "billing", "status": "in_progress"},
		{"subject": "Video does not play", "description": "Lesson 4 video shows a black screen.", "requester": "linus", "priority": "medium", "category": "technical"},
		{"subject": "Certificate name", "description": "Please fix the spelling on my certificate.", "requester": "barbara", "priority": "low", "category": "course", "status": "resolved", "notes": "Reissued certificate."},
	},
}
