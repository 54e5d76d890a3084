package store

import (
	"fmt"
	"strconv"
)

const (
	// notation dictionary for key formats:
	// org = organisation record
	// o   = org scope prefix
	// u   = user
	// p   = partner
	// l   = label
	// g   = group (keyed by gateway uuid)
	// ct  = contact (keyed by gateway uuid)
	// c   = case
	// ca  = case action
	// ce  = case event
	// out = outgoing broadcast
	// ma  = message action
	// idx = index
	// seq = id sequence
	// numeric ids are zero padded so prefix scans return them in id order

	OrgKey           = "org:%s"              // org:<org_id>
	UserKey          = "u:%s"                // u:<user_id>
	PartnerKey       = "o:%s:p:%s"           // o:<org_id>:p:<partner_id>
	LabelKey         = "o:%s:l:%s"           // o:<org_id>:l:<label_id>
	GroupKey         = "o:%s:g:%s"           // o:<org_id>:g:<group_uuid>
	ContactKey       = "o:%s:ct:%s"          // o:<org_id>:ct:<contact_uuid>
	CaseKey          = "o:%s:c:%s"           // o:<org_id>:c:<case_id>
	CaseActionKey    = "o:%s:ca:%s:%s"       // o:<org_id>:ca:<case_id>:<action_id>
	CaseEventKey     = "o:%s:ce:%s:%s"       // o:<org_id>:ce:<case_id>:<event_id>
	OutgoingKey      = "o:%s:out:%s"         // o:<org_id>:out:<outgoing_id>
	MessageActionKey = "o:%s:ma:%s"          // o:<org_id>:ma:<action_id>
	ContactCaseIndex = "idx:o:%s:ct:%s:c:%s" // idx:o:<org_id>:ct:<contact_uuid>:c:<case_id>
	BroadcastIndex   = "idx:o:%s:b:%s"       // idx:o:<org_id>:b:<broadcast_id>
	SequenceKey      = "seq:%s"              // seq:<name>

	IDPadWidth = 20
)

func padID(id int64) string {
	return fmt.Sprintf("%0*d", IDPadWidth, id)
}

func parsePaddedID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func genOrgKey(orgID int64) string { return fmt.Sprintf(OrgKey, padID(orgID)) }

func genUserKey(userID int64) string { return fmt.Sprintf(UserKey, padID(userID)) }

func genPartnerKey(orgID, partnerID int64) string {
	return fmt.Sprintf(PartnerKey, padID(orgID), padID(partnerID))
}

func genLabelKey(orgID, labelID int64) string {
	return fmt.Sprintf(LabelKey, padID(orgID), padID(labelID))
}

func genGroupKey(orgID int64, uuid string) string {
	return fmt.Sprintf(GroupKey, padID(orgID), uuid)
}

func genContactKey(orgID int64, uuid string) string {
	return fmt.Sprintf(ContactKey, padID(orgID), uuid)
}

func genCaseKey(orgID, caseID int64) string {
	return fmt.Sprintf(CaseKey, padID(orgID), padID(caseID))
}

func genCaseActionKey(orgID, caseID, actionID int64) string {
	return fmt.Sprintf(CaseActionKey, padID(orgID), padID(caseID), padID(actionID))
}

func genCaseEventKey(orgID, caseID, eventID int64) string {
	return fmt.Sprintf(CaseEventKey, padID(orgID), padID(caseID), padID(eventID))
}

func genOutgoingKey(orgID, id int64) string {
	return fmt.Sprintf(OutgoingKey, padID(orgID), padID(id))
}

func genMessageActionKey(orgID, id int64) string {
	return fmt.Sprintf(MessageActionKey, padID(orgID), padID(id))
}

func genContactCaseIndex(orgID int64, contactUUID string, caseID int64) string {
	return fmt.Sprintf(ContactCaseIndex, padID(orgID), contactUUID, padID(caseID))
}

func genBroadcastIndex(orgID, broadcastID int64) string {
	return fmt.Sprintf(BroadcastIndex, padID(orgID), padID(broadcastID))
}

// prefixes used for scans

func orgScope(orgID int64, kind string) string {
	return fmt.Sprintf("o:%s:%s:", padID(orgID), kind)
}

func caseActionPrefix(orgID, caseID int64) string {
	return fmt.Sprintf("o:%s:ca:%s:", padID(orgID), padID(caseID))
}

func caseEventPrefix(orgID, caseID int64) string {
	return fmt.Sprintf("o:%s:ce:%s:", padID(orgID), padID(caseID))
}

func contactCasePrefix(orgID int64, contactUUID string) string {
	return fmt.Sprintf("idx:o:%s:ct:%s:c:", padID(orgID), contactUUID)
}
