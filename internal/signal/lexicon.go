package signal

// sentimentLexicon maps a token to its polarity (+1 positive, -1
// negative). Tuned for business and product news vocabulary.
var sentimentLexicon = map[string]int{
	// positive
	"growth": 1, "growing": 1, "grew": 1, "surge": 1, "surged": 1,
	"record": 1, "profit": 1, "profitable": 1, "gain": 1, "gains": 1,
	"win": 1, "wins": 1, "winning": 1, "won": 1, "success": 1,
	"successful": 1, "launch": 1, "launched": 1, "launches": 1,
	"expand": 1, "expands": 1, "expansion": 1, "milestone": 1,
	"breakthrough": 1, "innovative": 1, "innovation": 1, "leading": 1,
	"leader": 1, "strong": 1, "stronger": 1, "strongest": 1, "boost": 1,
	"boosted": 1, "raise": 1, "raised": 1, "raises": 1, "funding": 1,
	"partnership": 1, "partnered": 1, "award": 1, "awarded": 1,
	"best": 1, "top": 1, "improved": 1, "improvement": 1, "upgrade": 1,
	"upgraded": 1, "momentum": 1, "outperform": 1, "outperformed": 1,
	"beat": 1, "beats": 1, "exceeded": 1, "exceeds": 1, "soar": 1,
	"soared": 1, "soars": 1, "popular": 1, "praised": 1, "acclaimed": 1,

	// negative
	"loss": -1, "losses": -1, "decline": -1, "declined": -1,
	"declining": -1, "drop": -1, "dropped": -1, "drops": -1, "fall": -1,
	"fell": -1, "falls": -1, "plunge": -1, "plunged": -1, "layoff": -1,
	"layoffs": -1, "cut": -1, "cuts": -1, "lawsuit": -1, "sued": -1,
	"sues": -1, "fine": -1, "fined": -1, "penalty": -1, "breach": -1,
	"breached": -1, "hack": -1, "hacked": -1, "leak": -1, "leaked": -1,
	"outage": -1, "downtime": -1, "failure": -1, "failed": -1,
	"fails": -1, "fail": -1, "scandal": -1, "fraud": -1, "weak": -1,
	"weaker": -1, "weakest": -1, "miss": -1, "missed": -1, "misses": -1,
	"shutdown": -1, "bankrupt": -1, "bankruptcy": -1, "recall": -1,
	"recalled": -1, "complaint": -1, "complaints": -1, "criticism": -1,
	"criticized": -1, "concern": -1, "concerns": -1, "risk": -1,
	"risks": -1, "struggle": -1, "struggles": -1, "struggling": -1,
	"delay": -1, "delayed": -1, "delays": -1, "churn": -1,
}

// negators flip the polarity of the following sentiment word.
var negators = map[string]bool{
	"not": true, "no": true, "never": true, "without": true,
	"hardly": true, "barely": true,
}

// topicKeywords maps tokens to topic tags.
var topicKeywords = map[string]string{
	"funding": "funding", "raised": "funding", "raises": "funding",
	"investment": "funding", "investor": "funding", "investors": "funding",
	"valuation": "funding", "ipo": "funding", "seed": "funding",

	"launch": "product", "launched": "product", "launches": "product",
	"release": "product", "released": "product", "releases": "product",
	"feature": "product", "features": "product", "beta": "product",
	"product": "product", "upgrade": "product", "version": "product",

	"partnership": "partnership", "partnered": "partnership",
	"partner": "partnership", "alliance": "partnership",
	"collaboration": "partnership", "integration": "partnership",

	"acquisition": "m&a", "acquired": "m&a", "acquires": "m&a",
	"merger": "m&a", "merged": "m&a", "buyout": "m&a",

	"lawsuit": "legal", "sued": "legal", "sues": "legal",
	"regulator": "legal", "regulatory": "legal", "antitrust": "legal",
	"compliance": "legal", "fined": "legal", "settlement": "legal",

	"hiring": "talent", "hires": "talent", "hired": "talent",
	"layoff": "talent", "layoffs": "talent", "ceo": "leadership",
	"cfo": "leadership", "cto": "leadership", "founder": "leadership",
	"resigned": "leadership", "appointed": "leadership",

	"breach": "security", "hacked": "security", "hack": "security",
	"vulnerability": "security", "ransomware": "security",
	"leak": "security", "leaked": "security", "phishing": "security",

	"pricing": "pricing", "price": "pricing", "prices": "pricing",
	"discount": "pricing", "subscription": "pricing", "tier": "pricing",

	"earnings": "earnings", "revenue": "earnings", "quarterly": "earnings",
	"profit": "earnings", "guidance": "earnings", "forecast": "earnings",

	"ai": "ai", "model": "ai", "llm": "ai", "chatbot": "ai",
	"automation": "ai", "machine": "ai",
}
