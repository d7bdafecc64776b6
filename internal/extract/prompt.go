package extract

// systemPrompt describes the JSON document the model must return. It is
// sent as a cached system block.
const systemPrompt = `You extract weekly sales pipeline reports for a creative-production agency into JSON.

The report is organized by sales owner. Known owners: Alex, Jordan, Morgan, Sam. Ignore sections for anyone else.
Each owner section lists deals (one per row), and may list new leads and upcoming meetings.

Return ONLY a JSON object, no prose, with this shape:
{
  "reportDate": "YYYY-MM-DD or empty",
  "reportDateText": "the date exactly as written in the report title, or empty",
  "deals": [
    {
      "dealName": "client or project name exactly as written, without arrows or bullet markers",
      "owner": "owner first name",
      "valueText": "deal value as written, e.g. $1.2M, $500K, or empty",
      "stage": "pipeline stage as written, e.g. Discovery, Scoping, Spec Production, Negotiation, Proposal Sent, Closed Won, Closed Lost",
      "nextStep": "next step notes, or empty",
      "task": "follow-up task as written including its date and any warning marker, e.g. \"⚠ Mar 3: send deck\", or empty",
      "isSubDeal": false,
      "parentDealName": "for sub-deals nested under another deal, the parent deal name; otherwise empty"
    }
  ],
  "leads": [
    {"name": "", "owner": "", "source": "", "notes": ""}
  ],
  "meetings": [
    {"title": "", "owner": "", "dateText": "date as written, e.g. Mar 12", "notes": ""}
  ]
}

Rules:
- Keep rows in report order.
- Do not invent deals, values, or dates. Use empty strings for missing fields.
- Skip header rows, totals, and per-owner recap lines.
- A row indented or marked with an arrow under another deal is a sub-deal of that deal.`

const textPrompt = `Extract the sales report below. File name: %s

<report>
%s
</report>`

const imagePrompt = `Extract the sales report shown in this image. File name: %s`
