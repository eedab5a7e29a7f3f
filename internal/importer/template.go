package importer

// TemplateFilename is the suggested download name for the import template.
const TemplateFilename = "subscriber-import-template.csv"

// Template returns the documented example payload for bulk imports.
//
// firstName and email are required; everything else is optional. Multiple
// segments go in one quoted, comma-separated field. A subscribed value of
// "false" imports the contact as unsubscribed.
func Template() string {
	return `firstName,lastName,email,personalEmail,mobile,title,company,segments,language,subscribed,notes
Ada,Lovelace,ada@example.com,ada.l@gmail.com,+1-555-0100,Director of Insights,Example Health,"kols,market_research",en,true,Met at HLTH 2025
Bo,Chen,bo.chen@example.org,,,Trial Coordinator,Example Clinical,trial_participants,en,,
Cleo,Okafor,cleo@example.net,,,,,"Key Opinion Leaders",fr,false,Requested no outreach
`
}
