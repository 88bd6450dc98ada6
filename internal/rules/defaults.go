package rules

import "github.com/kithua/acw/internal/source"

// Defaults returns the built-in curation rules.
func Defaults() *Rules {
	return &Rules{
		Reputation: ReputationRules{
			HighTrust: []string{
				"bbc.com", "reuters.com", "apnews.com", "aljazeera.com",
				"guardian.com", "nytimes.com", "washingtonpost.com", "africanews.com",
			},
			MediumTrust: []string{
				"allafrica.com", "irinnews.org", "thedefensepost.com",
				"janes.com", "defenseone.com", "bellingcat.com",
			},
			GovSuffixes: []string{
				".gov", ".gouv", ".go.tz", ".go.ke", ".gov.ng",
				".gov.za", ".gov.eg", ".gov.ma", ".gov.gh",
			},
			SuspiciousKeywords: []string{
				"stream", "movie", "casino", "poker", "betting", "gambling",
				"viagra", "cialis", "pharma", "porn", "xxx", "naked",
				"conspiracy", "illuminati", "fake news", "satire", "parody",
			},
		},
		Weights: defaultWeights(),
		Geography: GeographyRules{
			DomainIndicators: []string{"africa", "afrique", "afrik", "afri", "afric"},
			Countries: []string{
				"kenya", "nigeria", "egypt", "south africa", "ghana", "morocco",
				"algeria", "tunisia", "libya", "somalia", "ethiopia", "sudan",
				"senegal", "ivory coast", "cameroon", "angola", "zimbabwe", "zambia",
			},
		},
		Content: ContentRules{
			TitleKeywords:     []string{"terror", "attack", "crime", "fraud"},
			ShortContentChars: 100,
			MaxSubdomainParts: 3,
		},
		Pillars: map[source.Pillar][]string{
			source.PillarTerrorism: {
				"terror", "terrorism", "terrorist", "terrorists", "jihad", "jihadist", "jihadists",
				"attack", "attacks", "bomb", "bombing", "suicide", "extremist", "extremists",
				"militant", "militants", "insurgent", "insurgents", "isis", "jnim", "isgs",
				"iswap", "shabaab", "boko", "adf", "m23", "rsf",
			},
			source.PillarOrganised: {
				"drug", "drugs", "cocaine", "heroin", "trafficking", "traffickers",
				"smuggling", "smugglers", "mafia", "cartel", "arms", "weapons",
				"kidnap", "kidnapping", "ransom",
			},
			source.PillarFinancial: {
				"laundering", "bitcoin", "usdt", "fraud", "scam", "scams", "ponzi",
				"pyramid", "ofac", "sanctions", "evasion", "forex", "embezzlement",
				"bribery", "corruption",
			},
			source.PillarCyber: {
				"ransomware", "phishing", "malware", "hack", "hacked", "hackers",
				"hacking", "breach", "ddos", "botnet", "exploit", "darkweb", "onion",
				"trojan", "worm", "cybercrime", "cyberattack",
			},
		},
		Dedup: DedupRules{
			TitleSimilarity: 0.8,
			StopWords: []string{
				"a", "an", "the", "of", "in", "on", "at", "to", "for", "and", "or", "is", "are", "with", "by",
				"le", "la", "les", "un", "une", "des", "de", "du", "et", "au", "aux", "en", "dans", "sur", "pour",
				"o", "os", "as", "um", "uma", "do", "da", "dos", "das", "no", "na", "em", "e", "para",
			},
			TrackingParams: []string{"fbclid", "gclid", "mc_cid", "mc_eid", "ref", "cmpid", "ocid"},
		},
		Curation: CurationRules{
			RejectReputation: 0.1,
			MinTier:          source.TierD,
		},
		Discovery: DiscoveryRules{
			PromoteScore:  0.7,
			RecentDays:    30,
			RecentEntries: 10,
			SampleChars:   200,
			NewsDomains: []string{
				"bbc.com", "reuters.com", "apnews.com", "aljazeera.com", "africanews.com",
			},
			FeedPaths:        []string{"/rss", "/feed", "/news/rss", "/world/africa/rss"},
			MonitorSites:     []string{"darknetdiaries.com", "krebsonsecurity.com", "therecord.media"},
			MonitorFeedPaths: []string{"/rss", "/feed", "/feed.xml"},
			MonitorTier:      source.TierC,
			AgencyPrefixes: []string{
				"defense", "interior", "police", "intelligence",
				"security", "justice", "finance", "cybersecurity",
			},
			GovDomains: []string{
				"go.ke", "gov.za", "gov.eg", "gov.ma", "gov.gh",
				"gov.dz", "gov.tn", "gov.et", "go.tz", "go.ug",
			},
			GovSites: []string{"nigeria.gov.ng"},
		},
		Search: map[source.Pillar][]string{
			source.PillarTerrorism: {
				"African terrorism news RSS feed",
				"extremist group monitoring Africa",
				"jihadist activity reports Africa",
				"counter-terrorism intelligence Africa",
			},
			source.PillarOrganised: {
				"African organized crime news",
				"drug trafficking Africa RSS",
				"smuggling routes Africa",
				"transnational crime monitoring",
			},
			source.PillarFinancial: {
				"African financial crime news",
				"money laundering Africa RSS",
				"cryptocurrency fraud Africa",
				"investment scam Africa",
			},
			source.PillarCyber: {
				"African cybercrime news",
				"ransomware Africa RSS",
				"dark web Africa monitoring",
				"hacking groups Africa",
			},
		},
	}
}

func defaultWeights() Weights {
	return Weights{
		Reputation: 0.25,
		Freshness:  0.20,
		Content:    0.20,
		Geography:  0.15,
		Technical:  0.10,
		Historical: 0.10,
	}
}
